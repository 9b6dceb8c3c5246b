package gpio

import "sync"

// FakePort is a test double that models the port registers in memory.
// Tests move the switch with SetInputs and inspect lamps with Output.
type FakePort struct {
	mu     sync.Mutex
	gate   *edgeGate
	input  Mask
	output Mask

	// Toggles records every mask passed to Toggle, including empty ones.
	Toggles []Mask

	// PolarityChanges records every SetEdgePolarity call.
	PolarityChanges []PolarityChange

	// ReadError, if set, will be returned by Read().
	ReadError error

	// WriteError, if set, will be returned by WriteOr() and Toggle().
	WriteError error

	// Closed tracks if Close was called
	Closed bool
}

// PolarityChange is one recorded SetEdgePolarity call.
type PolarityChange struct {
	Lines    Mask
	Polarity Polarity
}

// NewFakePort creates a FakePort with the switch centered, lamps off and
// edge notifications enabled on both switch lines.
func NewFakePort() *FakePort {
	f := &FakePort{gate: newEdgeGate()}
	f.gate.enable(Switches)
	return f
}

// SetInputs moves the switch to the given asserted lines. Each changed line
// raises an edge through the same path as hardware would.
func (f *FakePort) SetInputs(m Mask) {
	f.mu.Lock()
	changed := (f.input ^ m) & Switches
	f.input = m & Switches
	f.mu.Unlock()

	for _, line := range []Mask{SwitchLeft, SwitchRight} {
		if changed&line != 0 {
			f.gate.latch(line, m&line != 0)
		}
	}
}

// Output returns the current output register.
func (f *FakePort) Output() Mask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.output
}

// EdgesEnabled returns the lines with edge notifications enabled.
func (f *FakePort) EdgesEnabled() Mask {
	f.gate.mu.Lock()
	defer f.gate.mu.Unlock()
	return f.gate.enabled
}

// Read returns the current input levels.
func (f *FakePort) Read() (Mask, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input, nil
}

// WriteOr sets output bits.
func (f *FakePort) WriteOr(m Mask) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.mu.Lock()
	f.output |= m & Lights
	f.mu.Unlock()
	return nil
}

// Toggle flips output bits.
func (f *FakePort) Toggle(m Mask) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.mu.Lock()
	f.Toggles = append(f.Toggles, m)
	f.output ^= m & Lights
	f.mu.Unlock()
	return nil
}

// SetEdgePolarity records and applies the polarity.
func (f *FakePort) SetEdgePolarity(m Mask, p Polarity) error {
	if err := f.gate.setPolarity(m, p); err != nil {
		return err
	}
	f.mu.Lock()
	f.PolarityChanges = append(f.PolarityChanges, PolarityChange{Lines: m, Polarity: p})
	f.mu.Unlock()
	return nil
}

func (f *FakePort) ClearPendingEdge(m Mask)     { f.gate.clearPending(m) }
func (f *FakePort) PendingEdge(m Mask) bool     { return f.gate.hasPending(m) }
func (f *FakePort) EnableEdgeInterrupt(m Mask)  { f.gate.enable(m) }
func (f *FakePort) DisableEdgeInterrupt(m Mask) { f.gate.disable(m) }
func (f *FakePort) Edges() <-chan Mask          { return f.gate.ch }

// Close marks the port as closed.
func (f *FakePort) Close() error {
	f.Closed = true
	return nil
}
