package filegate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// QuarantineStore holds files that cannot be safely admitted or disarmed.
// Files are retained for operator review, keyed by a hash of their original
// path rather than their content: the content is untrusted and is not
// hash-processed further, but the key still lets an operator trace a
// quarantined file back to the upload that produced it.
type QuarantineStore struct {
	root string
}

// NewQuarantineStore creates a store rooted at dir, creating it if needed.
func NewQuarantineStore(dir string) (*QuarantineStore, error) {
	absRoot, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0o700); err != nil {
		return nil, fmt.Errorf("creating quarantine dir: %w", err)
	}
	return &QuarantineStore{root: absRoot}, nil
}

// Root returns the store's directory.
func (q *QuarantineStore) Root() string {
	return q.root
}

// Move relocates the candidate into the store and returns an opaque handle.
// The original location no longer addresses the file afterwards. A rename
// is attempted first; a copy-then-remove fallback covers cross-device moves.
func (q *QuarantineStore) Move(ctx context.Context, cand Candidate) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	key := fmt.Sprintf("%016x%s", xxhash.Sum64String(cand.Path), cand.Ext())
	dst := filepath.Join(q.root, key)

	if err := os.Rename(cand.Path, dst); err != nil {
		if err := copyThenRemove(cand.Path, dst); err != nil {
			return "", fmt.Errorf("quarantining %s: %w", cand.Name(), err)
		}
	}

	slog.Info("candidate quarantined", "name", cand.Name(), "handle", key)
	return key, nil
}

// Open returns a reader over a quarantined file by handle.
func (q *QuarantineStore) Open(handle string) (io.ReadCloser, error) {
	path := filepath.Join(q.root, filepath.Clean(handle))
	if !isPathUnderRoot(q.root, path) {
		return nil, fmt.Errorf("handle %q escapes quarantine root", handle)
	}
	return os.Open(path)
}

// copyThenRemove moves a file across filesystems.
func copyThenRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// isPathUnderRoot checks that a cleaned path stays inside root.
func isPathUnderRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) &&
		(len(rel) < 3 || rel[:3] != ".."+string(filepath.Separator))
}
