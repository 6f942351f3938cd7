package disarm

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// macroIndicators are the OOXML part names that carry VBA macros. Matching
// is on the basename so macros nested under word/, xl/ or ppt/ are caught.
var macroIndicators = []string{
	"vbaProject.bin",
	"vbaData.xml",
	"vbaProjectSignature.bin",
}

// neutralizeOffice repacks an Office Open XML document, dropping every
// macro-bearing part and preserving the rest. The repacked document must
// still carry the required OOXML skeleton or the rewrite is a failure.
func (e *Engine) neutralizeOffice(src io.ReaderAt, size int64) (*Result, error) {
	zr, err := zip.NewReader(src, size)
	if err != nil {
		return &Result{Success: false}, fmt.Errorf("rewriting office document: %w", err)
	}

	if e.limits.MaxEntries > 0 && len(zr.File) > e.limits.MaxEntries {
		return &Result{Success: false}, fmt.Errorf("rewriting office document: %d parts exceeds limit %d", len(zr.File), e.limits.MaxEntries)
	}

	var (
		out          bytes.Buffer
		zw           = zip.NewWriter(&out)
		removedMacro bool
		hasTypes     bool
		hasRels      bool
		totalWritten int64
	)

	for _, f := range zr.File {
		if isMacroPart(f.Name) {
			removedMacro = true
			continue
		}

		switch f.Name {
		case "[Content_Types].xml":
			hasTypes = true
		case "_rels/.rels":
			hasRels = true
		}

		budget := e.limits.MaxTotalUncompressed
		if budget > 0 && totalWritten+int64(f.UncompressedSize64) > budget { //nolint:gosec // bounded by budget check
			zw.Close()
			return &Result{Success: false}, fmt.Errorf("rewriting office document: uncompressed parts exceed %d bytes", budget)
		}

		written, err := copyZipEntry(zw, f)
		if err != nil {
			zw.Close()
			return &Result{Success: false}, fmt.Errorf("rewriting office document: part %s: %w", f.Name, err)
		}
		totalWritten += written
	}

	if err := zw.Close(); err != nil {
		return &Result{Success: false}, fmt.Errorf("rewriting office document: %w", err)
	}

	if !hasTypes || !hasRels {
		return &Result{Success: false}, fmt.Errorf("rewriting office document: missing required OOXML parts")
	}

	var actions []Action
	if removedMacro {
		actions = append(actions, ActionRemovedMacros)
	}

	return &Result{Actions: actions, Success: true, Artifact: out.Bytes()}, nil
}

// isMacroPart reports whether an OOXML part name indicates VBA macros.
func isMacroPart(name string) bool {
	base := name
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		base = name[idx+1:]
	}
	for _, indicator := range macroIndicators {
		if strings.EqualFold(base, indicator) {
			return true
		}
	}
	// Relationship files pointing at the VBA project.
	return strings.HasSuffix(name, "vbaProject.bin.rels")
}

// copyZipEntry re-encodes one archive member into the writer, enforcing the
// member's own declared size so a lying header cannot expand past it.
func copyZipEntry(zw *zip.Writer, f *zip.File) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	hdr := &zip.FileHeader{
		Name:     f.Name,
		Method:   f.Method,
		Modified: f.Modified,
		Comment:  f.Comment,
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, err
	}

	declared := int64(f.UncompressedSize64) //nolint:gosec // checked against budget by callers
	written, err := io.Copy(w, io.LimitReader(rc, declared+1))
	if err != nil {
		return written, err
	}
	if written > declared {
		return written, fmt.Errorf("member larger than declared %d bytes", declared)
	}
	return written, nil
}
