// Package logic contains the pure turn-signal domain: states, switch positions,
// flash masks and the policies that map one to the other.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"strings"
	"time"
)

// TurnState is the logical turn-signal mode.
type TurnState uint8

const (
	Neutral TurnState = iota
	Left
	Right
)

func (s TurnState) String() string {
	switch s {
	case Neutral:
		return "NEUTRAL"
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	}
	return "UNKNOWN"
}

// LED identifies one of the two indicator lamps.
type LED uint8

const (
	LeftLED  LED = 1 << 0
	RightLED LED = 1 << 1
)

// FlashMask is the set of LEDs currently subject to periodic toggling.
type FlashMask uint8

// Has reports whether the mask contains the LED.
func (m FlashMask) Has(led LED) bool {
	return m&FlashMask(led) != 0
}

// Empty reports whether no LED blinks.
func (m FlashMask) Empty() bool {
	return m == 0
}

func (m FlashMask) String() string {
	if m.Empty() {
		return "NONE"
	}
	var parts []string
	if m.Has(LeftLED) {
		parts = append(parts, "LEFT")
	}
	if m.Has(RightLED) {
		parts = append(parts, "RIGHT")
	}
	return strings.Join(parts, "+")
}

// FlashFor returns the flash mask that belongs to a turn state.
// NEUTRAL blinks nothing; LEFT and RIGHT blink their own LED only.
func FlashFor(s TurnState) FlashMask {
	switch s {
	case Left:
		return FlashMask(LeftLED)
	case Right:
		return FlashMask(RightLED)
	}
	return 0
}

// SwitchPosition is the settled position of the turn switch.
type SwitchPosition uint8

const (
	Center SwitchPosition = iota
	LeftHeld
	RightHeld
)

func (p SwitchPosition) String() string {
	switch p {
	case LeftHeld:
		return "LEFT_HELD"
	case RightHeld:
		return "RIGHT_HELD"
	}
	return "CENTER"
}

// PositionOf derives the switch position from the two asserted input lines.
// Both lines asserted at once is not a real position and resolves to Center.
func PositionOf(left, right bool) SwitchPosition {
	switch {
	case left && right:
		return Center
	case left:
		return LeftHeld
	case right:
		return RightHeld
	}
	return Center
}

// Await names the switch movement the next debounce cycle should watch for.
type Await uint8

const (
	AwaitAny Await = iota
	AwaitPress
	AwaitRelease
)

func (a Await) String() string {
	switch a {
	case AwaitPress:
		return "PRESS"
	case AwaitRelease:
		return "RELEASE"
	}
	return "ANY"
}

// EventType represents a turn-state transition.
type EventType string

const (
	EventTurnLeft  EventType = "TURN_LEFT"
	EventTurnRight EventType = "TURN_RIGHT"
	EventTurnOff   EventType = "TURN_OFF"
)

// EventTypeFor returns the event type for entering a state.
func EventTypeFor(to TurnState) EventType {
	switch to {
	case Left:
		return EventTurnLeft
	case Right:
		return EventTurnRight
	}
	return EventTurnOff
}

// Event represents a state transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	From      TurnState
	To        TurnState
	Position  SwitchPosition
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Left  int
	Right int
	Off   int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
