// Package archive performs structural inspection of ZIP-family containers.
// It walks only the archive's central directory, never decompressing entry
// bodies, so inspection cost is bounded regardless of what the archive
// claims to contain.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
)

// Limits bounds what an archive may declare before it is treated as a bomb.
// Zero values disable the corresponding check.
type Limits struct {
	// MaxEntries is the maximum number of entries allowed in the archive.
	MaxEntries int `yaml:"max_entries"`

	// MaxTotalUncompressed is the maximum total declared uncompressed size
	// in bytes.
	MaxTotalUncompressed int64 `yaml:"max_total_uncompressed"`

	// MaxExpansionRatio is the maximum allowed ratio of total declared
	// uncompressed size to archive size. Bombs commonly exceed 1000:1.
	MaxExpansionRatio float64 `yaml:"max_expansion_ratio"`

	// MaxNestingDepth is the maximum depth of archives within archives the
	// disarm engine will recurse into.
	MaxNestingDepth int `yaml:"max_nesting_depth"`
}

// DefaultLimits returns limits suitable for general-purpose uploads.
func DefaultLimits() Limits {
	return Limits{
		MaxEntries:           1000,
		MaxTotalUncompressed: 1 << 30, // 1 GiB
		MaxExpansionRatio:    100.0,
		MaxNestingDepth:      3,
	}
}

// EntryKind distinguishes files from directories in a manifest.
type EntryKind string

const (
	EntryFile EntryKind = "file"
	EntryDir  EntryKind = "dir"
)

// Entry describes one archive member as declared by the central directory.
type Entry struct {
	Name             string
	CompressedSize   int64
	UncompressedSize int64
	Kind             EntryKind
}

// Manifest is the ordered result of walking an archive's central directory.
type Manifest struct {
	Entries           []Entry
	TotalCompressed   int64
	TotalUncompressed int64

	// ArchiveSize is the on-disk size of the archive itself.
	ArchiveSize int64
}

// ExpansionRatio returns the ratio of declared uncompressed total to the
// archive's own size. Returns 0 for an empty archive.
func (m *Manifest) ExpansionRatio() float64 {
	if m.ArchiveSize <= 0 || m.TotalUncompressed == 0 {
		return 0
	}
	return float64(m.TotalUncompressed) / float64(m.ArchiveSize)
}

// Inspect walks the archive's central directory and returns its manifest,
// enforcing the given limits as it goes. The entry-count limit is checked
// before sizes accumulate, so an archive with too many entries fails fast
// without touching the remaining metadata.
func Inspect(r io.ReaderAt, size int64, limits Limits) (*Manifest, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &MalformedError{Reason: fmt.Sprintf("cannot read central directory: %v", err)}
	}

	if limits.MaxEntries > 0 && len(zr.File) > limits.MaxEntries {
		return nil, &BombError{
			Limit:    "entries",
			Observed: int64(len(zr.File)),
			Allowed:  int64(limits.MaxEntries),
		}
	}

	manifest := &Manifest{
		Entries:     make([]Entry, 0, len(zr.File)),
		ArchiveSize: size,
	}

	for _, f := range zr.File {
		if isDangerousPath(f.Name) {
			return nil, &MalformedError{Reason: fmt.Sprintf("dangerous entry path: %s", f.Name)}
		}

		kind := EntryFile
		if strings.HasSuffix(f.Name, "/") {
			kind = EntryDir
		}

		compressed := int64(f.CompressedSize64)     //nolint:gosec // sizes come from a uint32-era format
		uncompressed := int64(f.UncompressedSize64) //nolint:gosec
		if compressed < 0 || uncompressed < 0 {
			return nil, &MalformedError{Reason: fmt.Sprintf("entry %s declares overflowing size", f.Name)}
		}

		// Per-entry ratio check catches a single highly-compressed member
		// even when the aggregate stays under the ceiling.
		if limits.MaxExpansionRatio > 0 && compressed > 0 {
			ratio := float64(uncompressed) / float64(compressed)
			if ratio > limits.MaxExpansionRatio {
				return nil, &BombError{
					Limit:    "entry_ratio",
					Observed: int64(ratio),
					Allowed:  int64(limits.MaxExpansionRatio),
				}
			}
		}

		manifest.Entries = append(manifest.Entries, Entry{
			Name:             f.Name,
			CompressedSize:   compressed,
			UncompressedSize: uncompressed,
			Kind:             kind,
		})
		manifest.TotalCompressed += compressed
		manifest.TotalUncompressed += uncompressed

		if limits.MaxTotalUncompressed > 0 && manifest.TotalUncompressed > limits.MaxTotalUncompressed {
			return nil, &BombError{
				Limit:    "total_uncompressed",
				Observed: manifest.TotalUncompressed,
				Allowed:  limits.MaxTotalUncompressed,
			}
		}
	}

	if limits.MaxExpansionRatio > 0 {
		if ratio := manifest.ExpansionRatio(); ratio > limits.MaxExpansionRatio {
			return nil, &BombError{
				Limit:    "expansion_ratio",
				Observed: int64(ratio),
				Allowed:  int64(limits.MaxExpansionRatio),
			}
		}
	}

	return manifest, nil
}

// isDangerousPath checks for directory traversal and absolute paths in
// entry names.
func isDangerousPath(path string) bool {
	if strings.Contains(path, "..") {
		return true
	}

	// Unix-style absolute path
	if len(path) > 0 && path[0] == '/' {
		return true
	}

	// Windows-style absolute path (C:\, D:/, ...)
	if len(path) > 2 && path[1] == ':' && (path[2] == '\\' || path[2] == '/') {
		return true
	}

	// UNC path (\\server\share)
	if len(path) > 1 && path[0] == '\\' && path[1] == '\\' {
		return true
	}

	return false
}
