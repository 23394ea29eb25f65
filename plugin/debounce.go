package plugin

import (
	"sync"
	"time"
)

// debouncer re-arms a single timer on every Trigger call, invoking fn at
// most once per quiet period of the configured duration. Mirrors the
// teacher's NewDebouncer(duration, callback)/Trigger/Cancel usage in its
// daemon file watcher.
type debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	fn       func()
	timer    *time.Timer
}

func newDebouncer(d time.Duration, fn func()) *debouncer {
	return &debouncer{duration: d, fn: fn}
}

// Trigger (re-)arms the timer; fn fires once the configured duration
// elapses without another Trigger call (trailing-edge debounce).
func (d *debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.fn)
}

// Cancel stops any pending timer without firing fn.
func (d *debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
