package filegate

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// Store receives admitted artifacts. The pipeline hands off the neutralized
// artifact (or original, when disarm was a no-op) together with the Verdict;
// the store owns persistence and its own access-control policy.
type Store interface {
	// Put persists an admitted artifact under the given name and returns
	// the stored location.
	Put(ctx context.Context, name string, content io.Reader) (string, error)
}

// LocalStore is a filesystem-backed Store confined to a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	absRoot, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: absRoot}, nil
}

// Put implements Store. Writes go through a temp file and rename so a
// cancelled run never leaves a partial artifact at the final path.
func (s *LocalStore) Put(ctx context.Context, name string, content io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	fullPath := filepath.Join(s.root, filepath.Clean(name))
	if !isPathUnderRoot(s.root, fullPath) {
		return "", fmt.Errorf("store path %q escapes root", name)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".put-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return fullPath, nil
}

// checksum returns the hex-encoded xxhash of the artifact bytes.
func checksum(artifact []byte) string {
	sum := xxhash.Sum64(artifact)
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(sum >> (56 - 8*i))
	}
	return hex.EncodeToString(buf[:])
}
