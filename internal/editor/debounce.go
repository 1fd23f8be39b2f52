// Package editor is the dashboard side of Taply: an editing session over one
// profile document that saves itself through the HTTP API after the user
// stops typing.
package editor

import (
	"sync"
	"time"
)

// Debouncer runs the most recently triggered task once no new task has been
// triggered for the configured delay.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	pending func()
	gen     uint64
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn, replacing any task still waiting.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = fn
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush runs the waiting task now, on the caller's goroutine.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	fn := d.take()
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Stop drops the waiting task without running it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.take()
	d.mu.Unlock()
}

// Pending reports whether a task is waiting.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	fn := d.take()
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// take must be called with mu held.
func (d *Debouncer) take() func() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	fn := d.pending
	d.pending = nil
	return fn
}
