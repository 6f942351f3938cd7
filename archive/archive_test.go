package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"testing"
)

// buildZip creates an in-memory archive from name -> content pairs.
func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for name, content := range entries {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("creating entry %s: %v", name, err)
		}
		if _, err := f.Write(content); err != nil {
			t.Fatalf("writing entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func TestInspectValidArchive(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"readme.txt":   []byte("hello"),
		"docs/a.txt":   []byte("aaaa"),
		"docs/b.txt":   []byte("bbbb"),
	})

	manifest, err := Inspect(bytes.NewReader(data), int64(len(data)), DefaultLimits())
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if len(manifest.Entries) != 3 {
		t.Errorf("entries = %d, want 3", len(manifest.Entries))
	}
	if manifest.TotalUncompressed != 13 {
		t.Errorf("total uncompressed = %d, want 13", manifest.TotalUncompressed)
	}
	if manifest.ArchiveSize != int64(len(data)) {
		t.Errorf("archive size = %d, want %d", manifest.ArchiveSize, len(data))
	}
}

func TestInspectEntryCountBomb(t *testing.T) {
	entries := make(map[string][]byte, 20)
	for i := 0; i < 20; i++ {
		entries[fmt.Sprintf("file%02d.txt", i)] = []byte("x")
	}
	data := buildZip(t, entries)

	limits := DefaultLimits()
	limits.MaxEntries = 10

	_, err := Inspect(bytes.NewReader(data), int64(len(data)), limits)
	var bomb *BombError
	if !errors.As(err, &bomb) {
		t.Fatalf("Inspect() error = %v, want BombError", err)
	}
	if bomb.Limit != "entries" {
		t.Errorf("bomb limit = %s, want entries", bomb.Limit)
	}
	if bomb.Observed != 20 || bomb.Allowed != 10 {
		t.Errorf("bomb observed/allowed = %d/%d, want 20/10", bomb.Observed, bomb.Allowed)
	}
}

// The entry-count ceiling must trip before any size accumulation, so an
// archive that also lies enormously about sizes still fails on count.
func TestInspectEntryCountChecksBeforeSizes(t *testing.T) {
	entries := make(map[string][]byte, 30)
	for i := 0; i < 30; i++ {
		// Highly compressible entries that would also trip the ratio check.
		entries[fmt.Sprintf("file%02d.bin", i)] = bytes.Repeat([]byte{0}, 64*1024)
	}
	data := buildZip(t, entries)

	limits := Limits{MaxEntries: 5, MaxTotalUncompressed: 1, MaxExpansionRatio: 1.0}
	_, err := Inspect(bytes.NewReader(data), int64(len(data)), limits)
	var bomb *BombError
	if !errors.As(err, &bomb) {
		t.Fatalf("Inspect() error = %v, want BombError", err)
	}
	if bomb.Limit != "entries" {
		t.Errorf("bomb limit = %s, want entries first", bomb.Limit)
	}
}

func TestInspectTotalUncompressedBomb(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"a.bin": bytes.Repeat([]byte("abcdefgh"), 512), // 4KiB, not very compressible budget-wise
	})

	limits := DefaultLimits()
	limits.MaxTotalUncompressed = 1024
	limits.MaxExpansionRatio = 0 // isolate the size check

	_, err := Inspect(bytes.NewReader(data), int64(len(data)), limits)
	var bomb *BombError
	if !errors.As(err, &bomb) {
		t.Fatalf("Inspect() error = %v, want BombError", err)
	}
	if bomb.Limit != "total_uncompressed" {
		t.Errorf("bomb limit = %s, want total_uncompressed", bomb.Limit)
	}
}

func TestInspectExpansionRatioBomb(t *testing.T) {
	// 1MiB of zeros compresses to almost nothing.
	data := buildZip(t, map[string][]byte{
		"zeros.bin": make([]byte, 1<<20),
	})

	limits := DefaultLimits()
	limits.MaxExpansionRatio = 10

	_, err := Inspect(bytes.NewReader(data), int64(len(data)), limits)
	if !IsBomb(err) {
		t.Fatalf("Inspect() error = %v, want bomb", err)
	}
}

func TestInspectTraversalEntry(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"../../etc/passwd": []byte("root:x:0:0"),
	})

	_, err := Inspect(bytes.NewReader(data), int64(len(data)), DefaultLimits())
	if !IsMalformed(err) {
		t.Fatalf("Inspect() error = %v, want malformed", err)
	}
}

func TestInspectAbsoluteEntry(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"/etc/cron.d/evil": []byte("* * * * * root true"),
	})

	_, err := Inspect(bytes.NewReader(data), int64(len(data)), DefaultLimits())
	if !IsMalformed(err) {
		t.Fatalf("Inspect() error = %v, want malformed", err)
	}
}

func TestInspectGarbage(t *testing.T) {
	garbage := []byte("this is not a zip archive at all, not even close......")
	_, err := Inspect(bytes.NewReader(garbage), int64(len(garbage)), DefaultLimits())
	if !IsMalformed(err) {
		t.Fatalf("Inspect() error = %v, want malformed", err)
	}
}

func TestManifestExpansionRatio(t *testing.T) {
	m := &Manifest{TotalUncompressed: 1000, ArchiveSize: 10}
	if got := m.ExpansionRatio(); got != 100 {
		t.Errorf("ExpansionRatio() = %f, want 100", got)
	}

	empty := &Manifest{}
	if got := empty.ExpansionRatio(); got != 0 {
		t.Errorf("ExpansionRatio() on empty = %f, want 0", got)
	}
}

func TestInspectDisabledLimits(t *testing.T) {
	entries := make(map[string][]byte, 50)
	for i := 0; i < 50; i++ {
		entries[fmt.Sprintf("f%02d", i)] = make([]byte, 4096)
	}
	data := buildZip(t, entries)

	// Zero values disable every check.
	if _, err := Inspect(bytes.NewReader(data), int64(len(data)), Limits{}); err != nil {
		t.Fatalf("Inspect() with disabled limits error = %v", err)
	}
}
