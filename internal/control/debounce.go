package control

import (
	"time"

	"github.com/sweeney/turn-signal/internal/clock"
)

// DebounceTimer is a one-shot compare counter over a periodic timebase.
// It is only touched from the dispatcher goroutine.
type DebounceTimer struct {
	src     clock.Timer
	compare uint16
	count   uint16
	armed   bool
	expired bool
}

// NewDebounceTimer creates a disarmed timer expiring after ticks timebase ticks.
func NewDebounceTimer(src clock.Timer, ticks uint16) *DebounceTimer {
	src.Disable()
	return &DebounceTimer{src: src, compare: ticks}
}

// Arm restarts the countdown. Arming an armed timer discards the earlier
// deadline.
func (d *DebounceTimer) Arm() {
	d.count = 0
	d.expired = false
	d.armed = true
	d.src.Enable()
}

// Disarm stops the timebase. Ticks still in flight are ignored by Tick.
func (d *DebounceTimer) Disarm() {
	d.armed = false
	d.src.Disable()
}

// Tick advances the count and reports whether the compare value was reached.
func (d *DebounceTimer) Tick() bool {
	if !d.armed {
		return false
	}
	if d.count < d.compare {
		d.count++
	}
	if d.count >= d.compare {
		d.expired = true
	}
	return d.expired
}

// ClearFlag acknowledges an expiry.
func (d *DebounceTimer) ClearFlag() {
	d.expired = false
}

// Armed reports whether a countdown is running.
func (d *DebounceTimer) Armed() bool { return d.armed }

// Expired reports whether the countdown reached the compare value and the
// expiry has not been acknowledged yet.
func (d *DebounceTimer) Expired() bool { return d.expired }

// C is the timebase tick channel.
func (d *DebounceTimer) C() <-chan time.Time { return d.src.C() }
