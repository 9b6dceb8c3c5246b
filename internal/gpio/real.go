//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "turn-signal"

// PortConfig names the chip and line offsets of a RealPort.
type PortConfig struct {
	Chip        string
	SwitchLeft  int
	SwitchRight int
	LightLeft   int
	LightRight  int
	// ActiveLow reports switches as asserted when the raw line reads 0,
	// which is the case for switches to ground with pull-ups.
	ActiveLow bool
}

// RealPort drives actual hardware using Linux GPIO character device.
type RealPort struct {
	chip   *gpiocdev.Chip
	left   *gpiocdev.Line
	right  *gpiocdev.Line
	lights *gpiocdev.Lines
	gate   *edgeGate

	mu  sync.Mutex
	out Mask
}

// NewRealPort configures the switch lines as inputs with pull-up and edge
// detection on both edges, and the lamp lines as outputs driven low.
func NewRealPort(cfg PortConfig) (*RealPort, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", cfg.Chip, err)
	}

	p := &RealPort{chip: chip, gate: newEdgeGate()}

	inOpts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
	}
	if cfg.ActiveLow {
		inOpts = append(inOpts, gpiocdev.AsActiveLow)
	}

	p.left, err = chip.RequestLine(cfg.SwitchLeft, append(inOpts, gpiocdev.WithEventHandler(p.handler(SwitchLeft)))...)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("request left switch pin %d: %w", cfg.SwitchLeft, err)
	}

	p.right, err = chip.RequestLine(cfg.SwitchRight, append(inOpts, gpiocdev.WithEventHandler(p.handler(SwitchRight)))...)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("request right switch pin %d: %w", cfg.SwitchRight, err)
	}

	p.lights, err = chip.RequestLines([]int{cfg.LightLeft, cfg.LightRight}, gpiocdev.AsOutput(0, 0))
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("request light pins %d,%d: %w", cfg.LightLeft, cfg.LightRight, err)
	}

	p.gate.enable(Switches)
	return p, nil
}

// handler runs on the gpiocdev event goroutine.
func (p *RealPort) handler(line Mask) func(gpiocdev.LineEvent) {
	return func(evt gpiocdev.LineEvent) {
		p.gate.latch(line, evt.Type == gpiocdev.LineEventRisingEdge)
	}
}

// Read returns the logical levels of both switch lines.
func (p *RealPort) Read() (Mask, error) {
	var m Mask

	v, err := p.left.Value()
	if err != nil {
		return 0, fmt.Errorf("read left switch: %w", err)
	}
	if v == 1 {
		m |= SwitchLeft
	}

	v, err = p.right.Value()
	if err != nil {
		return 0, fmt.Errorf("read right switch: %w", err)
	}
	if v == 1 {
		m |= SwitchRight
	}

	return m, nil
}

// WriteOr drives the given lamp bits high.
func (p *RealPort) WriteOr(m Mask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.write(p.out | (m & Lights))
}

// Toggle flips the given lamp bits. An empty mask writes nothing.
func (p *RealPort) Toggle(m Mask) error {
	if m&Lights == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.write(p.out ^ (m & Lights))
}

// write must be called with mu held.
func (p *RealPort) write(out Mask) error {
	if err := p.lights.SetValues([]int{bit(out, LeftLight), bit(out, RightLight)}); err != nil {
		return fmt.Errorf("write lights: %w", err)
	}
	p.out = out
	return nil
}

func bit(m, b Mask) int {
	if m&b != 0 {
		return 1
	}
	return 0
}

// SetEdgePolarity reconfigures kernel edge detection on the given lines.
func (p *RealPort) SetEdgePolarity(m Mask, pol Polarity) error {
	if err := p.gate.setPolarity(m, pol); err != nil {
		return err
	}

	var opt gpiocdev.LineConfigOption
	switch pol {
	case Rising:
		opt = gpiocdev.WithRisingEdge
	case Falling:
		opt = gpiocdev.WithFallingEdge
	default:
		opt = gpiocdev.WithBothEdges
	}

	if m&SwitchLeft != 0 {
		if err := p.left.Reconfigure(opt); err != nil {
			return fmt.Errorf("reconfigure left switch: %w", err)
		}
	}
	if m&SwitchRight != 0 {
		if err := p.right.Reconfigure(opt); err != nil {
			return fmt.Errorf("reconfigure right switch: %w", err)
		}
	}
	return nil
}

func (p *RealPort) ClearPendingEdge(m Mask)     { p.gate.clearPending(m) }
func (p *RealPort) PendingEdge(m Mask) bool     { return p.gate.hasPending(m) }
func (p *RealPort) EnableEdgeInterrupt(m Mask)  { p.gate.enable(m) }
func (p *RealPort) DisableEdgeInterrupt(m Mask) { p.gate.disable(m) }
func (p *RealPort) Edges() <-chan Mask          { return p.gate.ch }

// Close releases GPIO resources.
func (p *RealPort) Close() error {
	var errs []error

	if p.left != nil {
		if err := p.left.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close left switch: %w", err))
		}
	}
	if p.right != nil {
		if err := p.right.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close right switch: %w", err))
		}
	}
	if p.lights != nil {
		if err := p.lights.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close lights: %w", err))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
