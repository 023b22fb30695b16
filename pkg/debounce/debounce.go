// Package debounce coalesces bursts of signals into a single callback.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn once per quiet period. Every Trigger inside the window
// pushes the deadline out again; only the last one fires.
type Debouncer struct {
	delay   time.Duration
	fn      func()
	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	pending bool
	stopped bool
}

// New creates a debouncer that calls fn after delay of inactivity.
func New(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger schedules fn, replacing any previously scheduled call.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = true
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
}

// Flush runs a pending call immediately instead of waiting for the delay.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if !d.pending || d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = false
	d.mu.Unlock()

	d.fn()
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels any scheduled call. Later Triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
}

// fire ignores timers superseded by a later Trigger whose Stop came too late.
func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	if !d.pending || d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.mu.Unlock()

	d.fn()
}
