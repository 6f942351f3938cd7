// Package disarm neutralizes active content in untrusted files. Each
// supported format has a dedicated strategy that strips executable or
// automation structure while preserving user-visible content, emitting a
// newly allocated artifact. The original bytes are never mutated.
package disarm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gobeaver/filegate/archive"
	"github.com/gobeaver/filegate/classifier"
)

// ErrUnsupportedFormat means no strategy exists for the format. Disarm is
// never attempted blind; the caller routes such files to quarantine.
var ErrUnsupportedFormat = errors.New("no disarm strategy for format")

// Action names one neutralization performed on a file.
type Action string

const (
	ActionStrippedJavaScript    Action = "stripped_javascript"
	ActionStrippedOpenAction    Action = "stripped_open_action"
	ActionStrippedLaunch        Action = "stripped_launch"
	ActionStrippedEmbeddedFile  Action = "stripped_embedded_file"
	ActionRemovedMacros         Action = "removed_macros"
	ActionRemovedExecutable     Action = "removed_executable"
	ActionRemovedNestedArchive  Action = "removed_nested_archive"
)

// Result reports what a neutralization run did. Artifact is a new owned
// allocation; ownership transfers to the caller on success.
type Result struct {
	Actions  []Action
	Success  bool
	Artifact []byte
}

// Engine dispatches a candidate to its format's neutralization strategy.
// The strategy set is closed: dispatch is an exhaustive switch on the
// detected format, never on the file extension.
type Engine struct {
	limits archive.Limits
}

// NewEngine creates a disarm engine bounded by the given archive limits.
func NewEngine(limits archive.Limits) *Engine {
	return &Engine{limits: limits}
}

// Neutralize produces a disarmed artifact for the given content. On any
// rewrite failure the returned Result has Success=false and the error is
// non-nil; a partially neutralized file is never reported as success.
func (e *Engine) Neutralize(ctx context.Context, src io.ReaderAt, size int64, format classifier.Format) (*Result, error) {
	select {
	case <-ctx.Done():
		return &Result{Success: false}, ctx.Err()
	default:
	}

	switch format {
	case classifier.FormatPDF:
		return e.neutralizePDF(src, size)

	case classifier.FormatDOCX, classifier.FormatXLSX, classifier.FormatPPTX:
		return e.neutralizeOffice(src, size)

	case classifier.FormatZIP:
		return e.neutralizeZIP(ctx, src, size, 0)

	case classifier.FormatJPEG, classifier.FormatPNG, classifier.FormatGIF,
		classifier.FormatWebP, classifier.FormatBMP, classifier.FormatTIFF,
		classifier.FormatMP3, classifier.FormatWAV, classifier.FormatFLAC,
		classifier.FormatOGG, classifier.FormatMP4, classifier.FormatWebM,
		classifier.FormatAVI, classifier.FormatText, classifier.FormatJSON,
		classifier.FormatXML, classifier.FormatHTML, classifier.FormatCSV:
		// No active-content surface: pass through unmodified.
		return e.passthrough(src, size)

	default:
		slog.Warn("disarm requested for unsupported format", "format", format)
		return &Result{Success: false}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// passthrough copies the content into a new artifact without changes.
func (e *Engine) passthrough(src io.ReaderAt, size int64) (*Result, error) {
	artifact := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(src, 0, size), artifact); err != nil {
		return &Result{Success: false}, fmt.Errorf("reading content: %w", err)
	}
	return &Result{Success: true, Artifact: artifact}, nil
}
