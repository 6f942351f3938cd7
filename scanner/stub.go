package scanner

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// StubScanner is an in-memory Scanner for tests and local development. It
// flags content containing any registered signature substring. Safe for
// concurrent use.
type StubScanner struct {
	mu         sync.RWMutex
	signatures map[string][]byte

	// Fail, when set, makes every scan report unavailability with this
	// reason. FailTimeout marks the unavailability as a timeout.
	Fail        string
	FailTimeout bool

	// FailCount limits how many scans fail before the stub recovers.
	// Zero means fail forever while Fail is set.
	FailCount int

	calls int
}

// NewStubScanner creates a stub with the given named signatures.
func NewStubScanner(signatures map[string][]byte) *StubScanner {
	sigs := make(map[string][]byte, len(signatures))
	for name, pattern := range signatures {
		sigs[name] = pattern
	}
	return &StubScanner{signatures: sigs}
}

// Scan implements Scanner.
func (s *StubScanner) Scan(_ context.Context, r io.Reader, _ string) Outcome {
	s.mu.Lock()
	s.calls++
	failing := s.Fail != "" && (s.FailCount == 0 || s.calls <= s.FailCount)
	s.mu.Unlock()

	if failing {
		return Unavailable(s.Fail, s.FailTimeout)
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return Unavailable(err.Error(), false)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, pattern := range s.signatures {
		if bytes.Contains(content, pattern) {
			return Infected(name)
		}
	}
	return Clean()
}

// Calls returns how many scans the stub has served.
func (s *StubScanner) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}
