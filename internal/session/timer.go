// Package session provides the elapsed-time clock for interview sessions.
package session

import (
	"fmt"
	"sync"
	"time"
)

// ElapsedTimer measures how long a call has been in the active state. It is
// started and stopped solely by the session state machine and has no side
// effects on other components.
type ElapsedTimer struct {
	mu        sync.Mutex
	now       func() time.Time
	startedAt time.Time
	elapsed   time.Duration
	running   bool
}

// NewElapsedTimer creates a stopped timer.
func NewElapsedTimer() *ElapsedTimer {
	return &ElapsedTimer{now: time.Now}
}

// newElapsedTimerWithClock injects a clock for tests.
func newElapsedTimerWithClock(now func() time.Time) *ElapsedTimer {
	return &ElapsedTimer{now: now}
}

// Start begins measuring. Starting a running timer is a no-op.
func (t *ElapsedTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.startedAt = t.now()
	t.running = true
}

// Stop freezes the elapsed value. Stopping a stopped timer is a no-op.
func (t *ElapsedTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.elapsed = t.monotonicElapsedLocked()
	t.running = false
}

// Elapsed returns the time spent active so far.
func (t *ElapsedTimer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return t.monotonicElapsedLocked()
	}
	return t.elapsed
}

// ElapsedSeconds returns the elapsed time as whole seconds.
func (t *ElapsedTimer) ElapsedSeconds() int {
	return int(t.Elapsed() / time.Second)
}

// Display renders the elapsed time as MM:SS.
func (t *ElapsedTimer) Display() string {
	secs := t.ElapsedSeconds()
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func (t *ElapsedTimer) monotonicElapsedLocked() time.Duration {
	d := t.now().Sub(t.startedAt)
	if d < t.elapsed {
		return t.elapsed
	}
	return d
}
