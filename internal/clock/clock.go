// Package clock provides periodic interrupt sources with an abstraction for
// testing. A Timer delivers ticks on a channel while enabled.
package clock

import (
	"sync"
	"time"
)

// Timer is a periodic interrupt source.
type Timer interface {
	// C delivers ticks while the timer is enabled.
	C() <-chan time.Time

	// Enable starts (or restarts) the tick period from now.
	Enable()

	// Disable stops delivering ticks. It does not drain a tick already queued.
	Disable()

	// Stop releases the timer for good.
	Stop()
}

// RealTimer is a Timer backed by time.Ticker.
type RealTimer struct {
	mu      sync.Mutex
	period  time.Duration
	ticker  *time.Ticker
	enabled bool
}

// NewRealTimer creates a timer with the given period. It starts disabled
// unless enabled is true.
func NewRealTimer(period time.Duration, enabled bool) *RealTimer {
	t := &RealTimer{
		period: period,
		ticker: time.NewTicker(period),
	}
	if enabled {
		t.enabled = true
	} else {
		t.ticker.Stop()
	}
	return t
}

func (t *RealTimer) C() <-chan time.Time { return t.ticker.C }

// Enable restarts the period from now. A tick left queued from before the
// last Disable is discarded so it cannot count toward the new period.
func (t *RealTimer) Enable() {
	t.mu.Lock()
	t.ticker.Stop()
	select {
	case <-t.ticker.C:
	default:
	}
	t.ticker.Reset(t.period)
	t.enabled = true
	t.mu.Unlock()
}

func (t *RealTimer) Disable() {
	t.mu.Lock()
	if t.enabled {
		t.ticker.Stop()
		t.enabled = false
	}
	t.mu.Unlock()
}

func (t *RealTimer) Stop() {
	t.Disable()
}

// Period returns the tick period.
func (t *RealTimer) Period() time.Duration {
	return t.period
}

// FakeTimer is a test double whose ticks are fired by hand.
type FakeTimer struct {
	mu      sync.Mutex
	ch      chan time.Time
	enabled bool
	stopped bool

	// Enables and Disables count the calls made.
	Enables  int
	Disables int
}

// NewFakeTimer creates a disabled FakeTimer with room for buffered ticks.
func NewFakeTimer() *FakeTimer {
	return &FakeTimer{ch: make(chan time.Time, 64)}
}

func (f *FakeTimer) C() <-chan time.Time { return f.ch }

func (f *FakeTimer) Enable() {
	f.mu.Lock()
	f.enabled = true
	f.Enables++
	f.mu.Unlock()
}

func (f *FakeTimer) Disable() {
	f.mu.Lock()
	f.enabled = false
	f.Disables++
	f.mu.Unlock()
}

func (f *FakeTimer) Stop() {
	f.mu.Lock()
	f.enabled = false
	f.stopped = true
	f.mu.Unlock()
}

// Enabled reports whether the timer is currently enabled.
func (f *FakeTimer) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

// Stopped reports whether Stop was called.
func (f *FakeTimer) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// Fire queues one tick if the timer is enabled and reports whether it did.
func (f *FakeTimer) Fire(at time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.enabled {
		return false
	}
	f.ch <- at
	return true
}
