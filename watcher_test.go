package filegate

import (
	"context"
	"testing"
	"time"
)

func TestWatchQuarantineSignalsOnArrival(t *testing.T) {
	store, err := NewQuarantineStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	w, err := WatchQuarantine(store)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	token := w.Token()
	fired := make(chan struct{})
	token.OnChange(func() { close(fired) })

	cand := writeCandidate(t, "suspect.pdf", []byte("payload"))
	if _, err := store.Move(context.Background(), cand); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("change callback did not fire after a quarantine arrival")
	}
	if !token.HasChanged() {
		t.Error("token did not record the change")
	}
}

func TestWatcherTokenRearmsAfterChange(t *testing.T) {
	store, err := NewQuarantineStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	w, err := WatchQuarantine(store)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	first := w.Token()
	if w.Token() != first {
		t.Fatal("unfired token was replaced")
	}

	first.signal()
	second := w.Token()
	if second == first {
		t.Fatal("fired token was not replaced")
	}
	if second.HasChanged() {
		t.Error("fresh token reports a change")
	}
}

func TestChangeTokenCallbackFiresOnce(t *testing.T) {
	token := &ChangeToken{}
	calls := 0
	token.OnChange(func() { calls++ })

	token.signal()
	token.signal()
	if calls != 1 {
		t.Errorf("callback fired %d times, want 1", calls)
	}
}
