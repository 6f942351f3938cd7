package filegate

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// QuarantineWatcher notifies operators when files land in the quarantine
// store. Callbacks fire once per change token; call Token again to arm a
// fresh one.
type QuarantineWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu    sync.Mutex
	token *ChangeToken
}

// ChangeToken reports whether the quarantine store changed since it was
// armed and invokes registered callbacks on the first change.
type ChangeToken struct {
	changed   atomic.Bool
	mu        sync.RWMutex
	callbacks []func()
}

// HasChanged reports whether a change was observed.
func (t *ChangeToken) HasChanged() bool {
	return t.changed.Load()
}

// OnChange registers a callback invoked on the first observed change.
func (t *ChangeToken) OnChange(callback func()) {
	t.mu.Lock()
	t.callbacks = append(t.callbacks, callback)
	t.mu.Unlock()
}

// signal marks the token changed and fires callbacks exactly once.
func (t *ChangeToken) signal() {
	if t.changed.Swap(true) {
		return
	}
	t.mu.RLock()
	callbacks := make([]func(), len(t.callbacks))
	copy(callbacks, t.callbacks)
	t.mu.RUnlock()
	for _, cb := range callbacks {
		cb()
	}
}

// WatchQuarantine starts watching the store's directory for new arrivals.
func WatchQuarantine(store *QuarantineStore) (*QuarantineWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(store.Root()); err != nil {
		w.Close()
		return nil, err
	}

	qw := &QuarantineWatcher{
		watcher: w,
		done:    make(chan struct{}),
		token:   &ChangeToken{},
	}

	go func() {
		for {
			select {
			case <-qw.done:
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
					slog.Info("quarantine store changed", "path", event.Name, "op", event.Op.String())
					qw.mu.Lock()
					qw.token.signal()
					qw.mu.Unlock()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("quarantine watch error", "err", err)
			}
		}
	}()

	return qw, nil
}

// Token returns the current change token, arming a fresh one if the
// previous token already fired.
func (w *QuarantineWatcher) Token() *ChangeToken {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.token.HasChanged() {
		w.token = &ChangeToken{}
	}
	return w.token
}

// Close stops the watcher.
func (w *QuarantineWatcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
