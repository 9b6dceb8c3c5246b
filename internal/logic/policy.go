package logic

import "fmt"

// Policy decides the next turn state from a settled switch position.
type Policy interface {
	// Name is the configuration name of the policy.
	Name() string

	// Next returns the state to enter and the edge to await afterwards.
	// ok is false when the sample is not a transition and nothing must change.
	Next(pos SwitchPosition, cur TurnState) (next TurnState, await Await, ok bool)
}

// Policy names accepted by PolicyByName.
const (
	PolicyLevel  = "level"
	PolicyToggle = "toggle"
)

// PolicyByName returns the policy registered under name.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case PolicyLevel:
		return LevelPolicy{}, nil
	case PolicyToggle:
		return TogglePolicy{}, nil
	}
	return nil, fmt.Errorf("unknown policy %q (want %q or %q)", name, PolicyLevel, PolicyToggle)
}

// LevelPolicy maps a held switch position straight to a turn state,
// independent of history.
type LevelPolicy struct{}

func (LevelPolicy) Name() string { return PolicyLevel }

// Next always applies: resolving the same position again re-enters the same state.
func (LevelPolicy) Next(pos SwitchPosition, _ TurnState) (TurnState, Await, bool) {
	switch pos {
	case LeftHeld:
		return Left, AwaitRelease, true
	case RightHeld:
		return Right, AwaitRelease, true
	}
	return Neutral, AwaitPress, true
}

// TogglePolicy treats each line as a momentary push button. Pressing the
// button of the active direction cancels it, the other one switches over.
type TogglePolicy struct{}

func (TogglePolicy) Name() string { return PolicyToggle }

// Next ignores Center samples, which are button releases.
func (TogglePolicy) Next(pos SwitchPosition, cur TurnState) (TurnState, Await, bool) {
	var pressed TurnState
	switch pos {
	case LeftHeld:
		pressed = Left
	case RightHeld:
		pressed = Right
	default:
		return cur, AwaitAny, false
	}
	if cur == pressed {
		return Neutral, AwaitAny, true
	}
	return pressed, AwaitAny, true
}

// Resolution is the complete outcome of one resolver run.
type Resolution struct {
	State    TurnState
	Flash    FlashMask
	Interval uint16
	Await    Await
}

// Resolve runs the policy and derives the flash configuration for the new state.
// The flash mask always agrees with the state: empty for NEUTRAL, otherwise the
// single LED of the active direction.
func Resolve(p Policy, pos SwitchPosition, cur TurnState, interval uint16) (Resolution, bool) {
	next, await, ok := p.Next(pos, cur)
	if !ok {
		return Resolution{}, false
	}
	return Resolution{
		State:    next,
		Flash:    FlashFor(next),
		Interval: interval,
		Await:    await,
	}, true
}
