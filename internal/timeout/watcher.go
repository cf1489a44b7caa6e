// Package timeout arms one diagnostic timer per pending request and retires
// it when the request completes or the owning runtime resets.
package timeout

import (
	"time"

	"github.com/danpasecinic/tamd/internal/host"
)

type Watcher struct {
	host   host.Host
	window time.Duration
	timers map[string]func()
}

func New(h host.Host, window time.Duration) *Watcher {
	return &Watcher{
		host:   h,
		window: window,
		timers: make(map[string]func()),
	}
}

func (w *Watcher) Window() time.Duration {
	return w.window
}

// Arm schedules expire to run once the window elapses for id. Arming an id
// that is already armed is a no-op.
func (w *Watcher) Arm(id string, expire func()) error {
	if _, armed := w.timers[id]; armed {
		return nil
	}

	cancel, err := w.host.AfterFunc(w.window, expire)
	if err != nil {
		return err
	}
	w.timers[id] = cancel
	return nil
}

// Retire forgets id, cancelling its timer if it has not fired.
func (w *Watcher) Retire(id string) {
	cancel, armed := w.timers[id]
	if !armed {
		return
	}
	delete(w.timers, id)
	cancel()
}

// Expired forgets id without cancelling; used from the timer callback itself.
// It reports whether id was still armed.
func (w *Watcher) Expired(id string) bool {
	if _, armed := w.timers[id]; !armed {
		return false
	}
	delete(w.timers, id)
	return true
}

func (w *Watcher) Armed(id string) bool {
	_, armed := w.timers[id]
	return armed
}

func (w *Watcher) Len() int {
	return len(w.timers)
}

// Reset cancels every outstanding timer.
func (w *Watcher) Reset() {
	for id, cancel := range w.timers {
		cancel()
		delete(w.timers, id)
	}
}
