package disarm

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"github.com/gobeaver/filegate/archive"
	"github.com/gobeaver/filegate/classifier"
)

// neutralizeZIP rewrites an archive with its executable members removed.
// Entries are extracted into an isolated working area subject to the
// engine's limits, classified by content (never by name), and repacked.
// Nested archives are recursed into up to the configured depth; beyond it
// they are dropped rather than trusted. The working area is removed on
// every exit path.
func (e *Engine) neutralizeZIP(ctx context.Context, src io.ReaderAt, size int64, depth int) (result *Result, retErr error) {
	manifest, err := archive.Inspect(src, size, e.limits)
	if err != nil {
		return &Result{Success: false}, fmt.Errorf("rewriting archive: %w", err)
	}

	workdir, err := os.MkdirTemp("", "filegate-disarm-*")
	if err != nil {
		return &Result{Success: false}, fmt.Errorf("creating work area: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workdir); rmErr != nil {
			retErr = multierr.Append(retErr, fmt.Errorf("cleaning work area: %w", rmErr))
		}
	}()

	zr, err := zip.NewReader(src, size)
	if err != nil {
		return &Result{Success: false}, fmt.Errorf("rewriting archive: %w", err)
	}

	var (
		out     bytes.Buffer
		zw      = zip.NewWriter(&out)
		actions []Action
		seen    = make(map[Action]bool)
		budget  = e.limits.MaxTotalUncompressed
		written int64
	)
	record := func(a Action) {
		if !seen[a] {
			seen[a] = true
			actions = append(actions, a)
		}
	}

	for i, f := range zr.File {
		select {
		case <-ctx.Done():
			zw.Close()
			return &Result{Success: false}, ctx.Err()
		default:
		}

		if strings.HasSuffix(f.Name, "/") {
			// Directory entries carry no content; keep them as-is.
			if _, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Modified: f.Modified}); err != nil {
				zw.Close()
				return &Result{Success: false}, fmt.Errorf("rewriting archive: %w", err)
			}
			continue
		}

		declared := manifest.Entries[i].UncompressedSize
		if budget > 0 && written+declared > budget {
			zw.Close()
			return &Result{Success: false}, fmt.Errorf("rewriting archive: extraction exceeds %d bytes", budget)
		}

		extracted, n, err := extractEntry(workdir, f, declared)
		if err != nil {
			zw.Close()
			return &Result{Success: false}, fmt.Errorf("rewriting archive: entry %s: %w", f.Name, err)
		}
		written += n

		class, err := classifyFile(extracted, f.Name)
		if err != nil {
			zw.Close()
			return &Result{Success: false}, fmt.Errorf("rewriting archive: entry %s: %w", f.Name, err)
		}

		switch {
		case class.Format.IsExecutable():
			slog.Info("dropping executable archive member", "entry", f.Name, "format", class.Format)
			record(ActionRemovedExecutable)
			continue

		case class.Format == classifier.FormatZIP:
			if depth+1 >= e.limits.MaxNestingDepth {
				slog.Info("dropping archive member beyond nesting depth", "entry", f.Name, "depth", depth+1)
				record(ActionRemovedNestedArchive)
				continue
			}
			nested, err := e.neutralizeExtracted(ctx, extracted, depth+1)
			if err != nil {
				zw.Close()
				return &Result{Success: false, Actions: actions}, fmt.Errorf("rewriting archive: nested %s: %w", f.Name, err)
			}
			for _, a := range nested.Actions {
				record(a)
			}
			if err := writeEntry(zw, f, bytes.NewReader(nested.Artifact)); err != nil {
				zw.Close()
				return &Result{Success: false}, fmt.Errorf("rewriting archive: %w", err)
			}
			continue

		case class.Format == classifier.FormatGZIP, class.Format == classifier.FormatTAR,
			class.Format == classifier.FormatRAR, class.Format == classifier.Format7Z:
			// Container formats with no rewrite strategy are dropped rather
			// than trusted.
			slog.Info("dropping unsupported archive member", "entry", f.Name, "format", class.Format)
			record(ActionRemovedNestedArchive)
			continue

		case class.Format.RequiresDisarm():
			// PDFs and office documents inside an archive get their own
			// strategy before repacking.
			inner, err := e.neutralizeMember(ctx, extracted, class.Format)
			if err != nil {
				zw.Close()
				return &Result{Success: false, Actions: actions}, fmt.Errorf("rewriting archive: member %s: %w", f.Name, err)
			}
			for _, a := range inner.Actions {
				record(a)
			}
			if err := writeEntry(zw, f, bytes.NewReader(inner.Artifact)); err != nil {
				zw.Close()
				return &Result{Success: false}, fmt.Errorf("rewriting archive: %w", err)
			}
			continue
		}

		ef, err := os.Open(extracted)
		if err != nil {
			zw.Close()
			return &Result{Success: false}, fmt.Errorf("rewriting archive: %w", err)
		}
		err = writeEntry(zw, f, ef)
		ef.Close()
		if err != nil {
			zw.Close()
			return &Result{Success: false}, fmt.Errorf("rewriting archive: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return &Result{Success: false}, fmt.Errorf("rewriting archive: %w", err)
	}

	return &Result{Actions: actions, Success: true, Artifact: out.Bytes()}, nil
}

// neutralizeExtracted recurses into a nested archive already sitting in the
// working area.
func (e *Engine) neutralizeExtracted(ctx context.Context, path string, depth int) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return &Result{Success: false}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &Result{Success: false}, err
	}
	return e.neutralizeZIP(ctx, f, info.Size(), depth)
}

// neutralizeMember applies a non-archive strategy to an extracted member.
func (e *Engine) neutralizeMember(ctx context.Context, path string, format classifier.Format) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return &Result{Success: false}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &Result{Success: false}, err
	}
	return e.Neutralize(ctx, f, info.Size(), format)
}

// extractEntry writes one archive member into the working area, refusing to
// write past its declared uncompressed size. Entry names are flattened to
// an index-free basename inside the work area; the original name survives
// only in the repacked output.
func extractEntry(workdir string, f *zip.File, declared int64) (path string, written int64, err error) {
	rc, err := f.Open()
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()

	dst, err := os.CreateTemp(workdir, "entry-*")
	if err != nil {
		return "", 0, err
	}
	defer dst.Close()

	written, err = io.Copy(dst, io.LimitReader(rc, declared+1))
	if err != nil {
		return "", written, err
	}
	if written > declared {
		return "", written, fmt.Errorf("member larger than declared %d bytes", declared)
	}
	return dst.Name(), written, nil
}

// classifyFile classifies an extracted member by its leading bytes.
func classifyFile(path, name string) (classifier.Classification, error) {
	f, err := os.Open(path)
	if err != nil {
		return classifier.Classification{}, err
	}
	defer f.Close()

	prefix := make([]byte, classifier.PrefixSize)
	n, err := io.ReadFull(f, prefix)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return classifier.Classification{}, err
	}
	return classifier.Classify(prefix[:n], filepath.Base(name)), nil
}

// writeEntry re-encodes one member into the output archive.
func writeEntry(zw *zip.Writer, f *zip.File, content io.Reader) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     f.Name,
		Method:   f.Method,
		Modified: f.Modified,
		Comment:  f.Comment,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, content)
	return err
}
