package filegate

import (
	"os"
	"path/filepath"
	"strings"
)

// Candidate is an untrusted upload awaiting an admission decision. The
// pipeline treats every field as adversarial: the claimed name, extension
// and declared size are inputs to validation, never ground truth. The
// candidate's bytes are read but never mutated in place.
type Candidate struct {
	// Path is the on-disk location of the uploaded bytes.
	Path string

	// ClaimedName is the filename the uploader supplied. Defaults to the
	// base of Path when empty.
	ClaimedName string

	// DeclaredSize is the size the uploader declared, in bytes.
	DeclaredSize int64
}

// Name returns the claimed filename, falling back to the path's basename.
func (c Candidate) Name() string {
	if c.ClaimedName != "" {
		return c.ClaimedName
	}
	return filepath.Base(c.Path)
}

// Ext returns the claimed extension in lowercase, including the dot.
func (c Candidate) Ext() string {
	return strings.ToLower(filepath.Ext(c.Name()))
}

// open opens the candidate's content for reading.
func (c Candidate) open() (*os.File, int64, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}
