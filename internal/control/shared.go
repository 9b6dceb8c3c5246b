package control

import (
	"sync"

	"github.com/sweeney/turn-signal/internal/logic"
)

// Vars are the variables shared between the resolver and the blink scheduler.
type Vars struct {
	Turn     logic.TurnState
	Flash    logic.FlashMask
	Interval uint16
	Counter  uint16

	// Position is the switch position sampled by the latest resolution.
	Position logic.SwitchPosition
	// Resolutions counts resolver runs, including ones that changed nothing.
	Resolutions uint64
	// Toggles counts blink scheduler counter expiries.
	Toggles uint64
}

// SharedState guards Vars. Every multi-field update happens inside Critical,
// so the blink scheduler never observes a half-applied transition.
type SharedState struct {
	guard sync.Locker
	v     Vars
}

// NewSharedState returns NEUTRAL state with the counter loaded. A nil guard
// gets a mutex.
func NewSharedState(guard sync.Locker, interval uint16) *SharedState {
	if guard == nil {
		guard = &sync.Mutex{}
	}
	return &SharedState{
		guard: guard,
		v: Vars{
			Turn:     logic.Neutral,
			Interval: interval,
			Counter:  interval,
		},
	}
}

// Critical runs fn with the guard held. fn must not block.
func (s *SharedState) Critical(fn func(v *Vars)) {
	s.guard.Lock()
	defer s.guard.Unlock()
	fn(&s.v)
}

// Load returns a consistent copy of the shared variables.
func (s *SharedState) Load() Vars {
	s.guard.Lock()
	defer s.guard.Unlock()
	return s.v
}
