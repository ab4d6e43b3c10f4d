package fbtft

import (
	"sync"
	"time"
)

// stopper is the part of *time.Timer the flusher uses.
type stopper interface {
	Stop() bool
}

func timeAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// flusher is a single slot delayed job. Arming an armed flusher is a no-op,
// so a burst of marks collapses into one run at the earliest deadline. Runs
// never overlap.
type flusher struct {
	delay     time.Duration
	run       func()
	afterFunc func(time.Duration, func()) stopper

	mu      sync.Mutex
	timer   stopper
	armed   bool
	stopped bool

	runMu sync.Mutex
}

func newFlusher(delay time.Duration, run func()) *flusher {
	return &flusher{delay: delay, run: run, afterFunc: timeAfterFunc}
}

// arm schedules a run unless one is already pending.
func (f *flusher) arm() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armed || f.stopped {
		return
	}
	f.armed = true
	f.timer = f.afterFunc(f.delay, f.fire)
}

func (f *flusher) fire() {
	f.runMu.Lock()
	defer f.runMu.Unlock()
	f.mu.Lock()
	if !f.armed {
		f.mu.Unlock()
		return
	}
	// Disarm before running: marks made during the run schedule another.
	f.armed = false
	f.mu.Unlock()
	f.run()
}

// pending reports whether a run is scheduled.
func (f *flusher) pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.armed
}

// stop cancels the pending run and waits for a running one to return. The
// flusher cannot be armed again.
func (f *flusher) stop() {
	f.mu.Lock()
	f.stopped = true
	if f.armed {
		f.timer.Stop()
		f.armed = false
	}
	f.mu.Unlock()
	f.runMu.Lock()
	f.runMu.Unlock()
}
