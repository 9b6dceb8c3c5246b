// Package control runs the turn-signal core: the edge detector, the debounce
// timer, the mode resolver and the blink scheduler. Each of them is a handler
// that runs to completion on a single dispatcher goroutine.
package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/turn-signal/internal/clock"
	"github.com/sweeney/turn-signal/internal/gpio"
	"github.com/sweeney/turn-signal/internal/logic"
)

// EdgeMode selects how switch edges are watched between resolutions.
type EdgeMode string

const (
	// EdgeBoth watches both edges on both lines at all times.
	EdgeBoth EdgeMode = "both"
	// EdgeFlip watches only the edge the policy awaits next.
	EdgeFlip EdgeMode = "flip"
)

// ParseEdgeMode validates an edge mode name.
func ParseEdgeMode(s string) (EdgeMode, error) {
	switch EdgeMode(s) {
	case EdgeBoth, EdgeFlip:
		return EdgeMode(s), nil
	}
	return "", fmt.Errorf("unknown edge mode %q (want %q or %q)", s, EdgeBoth, EdgeFlip)
}

// Config holds controller settings.
type Config struct {
	Policy        logic.Policy
	FlashInterval uint16
	DebounceTicks uint16
	EdgeMode      EdgeMode

	// Events receives every transition that changes the turn state.
	// Sends never block; events are dropped when the channel is full.
	Events chan<- logic.Event

	// Now defaults to time.Now.
	Now func() time.Time
}

// Controller owns the shared state and the handlers that act on it.
type Controller struct {
	port      gpio.Port
	state     *SharedState
	debounce  *DebounceTimer
	heartbeat clock.Timer
	policy    logic.Policy
	edgeMode  EdgeMode
	events    chan<- logic.Event
	now       func() time.Time
	log       *log.Entry
}

// New creates a controller in NEUTRAL state. Call Start before Run.
func New(port gpio.Port, debounce, heartbeat clock.Timer, cfg Config) (*Controller, error) {
	if cfg.Policy == nil {
		return nil, errors.New("control: no policy")
	}
	if cfg.FlashInterval == 0 {
		return nil, errors.New("control: flash interval must be positive")
	}
	if cfg.DebounceTicks == 0 {
		return nil, errors.New("control: debounce ticks must be positive")
	}
	if cfg.EdgeMode == "" {
		cfg.EdgeMode = EdgeBoth
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Controller{
		port:      port,
		state:     NewSharedState(nil, cfg.FlashInterval),
		debounce:  NewDebounceTimer(debounce, cfg.DebounceTicks),
		heartbeat: heartbeat,
		policy:    cfg.Policy,
		edgeMode:  cfg.EdgeMode,
		events:    cfg.Events,
		now:       cfg.Now,
		log: log.WithFields(log.Fields{
			"policy":    cfg.Policy.Name(),
			"edge_mode": string(cfg.EdgeMode),
		}),
	}, nil
}

// Start puts the port into its idle configuration: both lamps on, edge
// detection armed for the first press, heartbeat running.
func (c *Controller) Start() error {
	if err := c.port.WriteOr(gpio.Lights); err != nil {
		return fmt.Errorf("lights on: %w", err)
	}

	pol := gpio.BothEdges
	if c.edgeMode == EdgeFlip {
		pol = polarityFor(logic.AwaitPress)
	}
	if err := c.port.SetEdgePolarity(gpio.Switches, pol); err != nil {
		return fmt.Errorf("set edge polarity: %w", err)
	}

	c.port.ClearPendingEdge(gpio.Switches)
	c.port.EnableEdgeInterrupt(gpio.Switches)
	c.heartbeat.Enable()

	c.log.WithField("flash_interval", c.state.Load().Interval).Info("controller started")
	return nil
}

// Snapshot returns a consistent copy of the shared state.
func (c *Controller) Snapshot() Vars {
	return c.state.Load()
}

// Run dispatches handlers until ctx is cancelled. Handlers never overlap.
// When several sources are ready at once the edge detector goes first,
// then the debounce timer, then the heartbeat.
func (c *Controller) Run(ctx context.Context) error {
	edges := c.port.Edges()
	debounce := c.debounce.C()
	heartbeat := c.heartbeat.C()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		select {
		case <-edges:
			c.OnEdge()
			continue
		default:
		}

		select {
		case <-debounce:
			c.OnDebounceTick()
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return nil
		case <-edges:
			c.OnEdge()
		case <-debounce:
			c.OnDebounceTick()
		case <-heartbeat:
			c.OnHeartbeat()
		}
	}
}

func (c *Controller) emit(e logic.Event) {
	if c.events == nil {
		return
	}
	select {
	case c.events <- e:
	default:
		c.log.WithField("event", e.Type).Warn("event queue full, dropping")
	}
}

func polarityFor(a logic.Await) gpio.Polarity {
	switch a {
	case logic.AwaitPress:
		return gpio.Rising
	case logic.AwaitRelease:
		return gpio.Falling
	}
	return gpio.BothEdges
}

func lightsFor(m logic.FlashMask) gpio.Mask {
	var out gpio.Mask
	if m.Has(logic.LeftLED) {
		out |= gpio.LeftLight
	}
	if m.Has(logic.RightLED) {
		out |= gpio.RightLight
	}
	return out
}
