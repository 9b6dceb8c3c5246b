// Package gpio provides the switch and lamp port with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"
	"sync"
)

// Mask is a set of port bits. Bit positions follow the controller's port
// register: lamps are outputs, switches are inputs.
type Mask uint8

const (
	LeftLight   Mask = 1 << 0
	RightLight  Mask = 1 << 1
	SwitchLeft  Mask = 1 << 5
	SwitchRight Mask = 1 << 6

	Lights   = LeftLight | RightLight
	Switches = SwitchLeft | SwitchRight
)

// Default line offsets on gpiochip0 (BCM numbering).
const (
	DefaultPinSwitchLeft  = 5
	DefaultPinSwitchRight = 6
	DefaultPinLightLeft   = 23
	DefaultPinLightRight  = 24
)

// Polarity selects which level change raises an edge notification.
// Levels are logical: Rising means a switch line became asserted.
type Polarity uint8

const (
	BothEdges Polarity = iota
	Rising
	Falling
)

func (p Polarity) String() string {
	switch p {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	}
	return "both"
}

// Matches reports whether a transition to level fires under this polarity.
func (p Polarity) Matches(asserted bool) bool {
	switch p {
	case Rising:
		return asserted
	case Falling:
		return !asserted
	}
	return true
}

// Port is the GPIO capability consumed by the controller.
// Pin direction and pull resistors are fixed when the port is opened.
type Port interface {
	// Read returns the logical input levels; a set bit is an asserted switch.
	Read() (Mask, error)

	// WriteOr drives the given output bits high, leaving others untouched.
	WriteOr(m Mask) error

	// Toggle flips the given output bits, leaving others untouched.
	Toggle(m Mask) error

	// SetEdgePolarity selects the edge direction watched on the given inputs.
	SetEdgePolarity(m Mask, p Polarity) error

	// ClearPendingEdge discards latched edges on the given inputs.
	ClearPendingEdge(m Mask)

	// PendingEdge reports whether any of the given inputs has a latched edge.
	PendingEdge(m Mask) bool

	// EnableEdgeInterrupt resumes edge notifications on the given inputs.
	// An edge latched while disabled is delivered immediately.
	EnableEdgeInterrupt(m Mask)

	// DisableEdgeInterrupt stops edge notifications on the given inputs.
	// Edges keep being latched as pending.
	DisableEdgeInterrupt(m Mask)

	// Edges delivers edge notifications. Notifications coalesce: a send
	// that finds one already queued is dropped.
	Edges() <-chan Mask

	// Close releases GPIO resources.
	Close() error
}

// edgeGate implements the interrupt-enable and pending-flag registers shared
// by every Port implementation. Safe for concurrent use.
type edgeGate struct {
	mu       sync.Mutex
	enabled  Mask
	pending  Mask
	polarity map[Mask]Polarity
	ch       chan Mask
}

func newEdgeGate() *edgeGate {
	return &edgeGate{
		polarity: map[Mask]Polarity{SwitchLeft: BothEdges, SwitchRight: BothEdges},
		ch:       make(chan Mask, 1),
	}
}

// latch records a level change on a single input line.
func (g *edgeGate) latch(line Mask, asserted bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.polarity[line].Matches(asserted) {
		return
	}
	g.pending |= line
	if g.enabled&line != 0 {
		g.notify(line)
	}
}

// notify must be called with mu held.
func (g *edgeGate) notify(m Mask) {
	select {
	case g.ch <- m:
	default:
	}
}

func (g *edgeGate) setPolarity(m Mask, p Polarity) error {
	if m&^Switches != 0 {
		return fmt.Errorf("set edge polarity: %#02x is not a switch line", uint8(m))
	}
	g.mu.Lock()
	for _, line := range []Mask{SwitchLeft, SwitchRight} {
		if m&line != 0 {
			g.polarity[line] = p
		}
	}
	g.mu.Unlock()
	return nil
}

func (g *edgeGate) clearPending(m Mask) {
	g.mu.Lock()
	g.pending &^= m
	g.mu.Unlock()
}

func (g *edgeGate) hasPending(m Mask) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending&m != 0
}

func (g *edgeGate) enable(m Mask) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled |= m & Switches
	if due := g.pending & g.enabled & m; due != 0 {
		g.notify(due)
	}
}

func (g *edgeGate) disable(m Mask) {
	g.mu.Lock()
	g.enabled &^= m
	g.mu.Unlock()
}
