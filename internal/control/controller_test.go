package control

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/sweeney/turn-signal/internal/clock"
	"github.com/sweeney/turn-signal/internal/gpio"
	"github.com/sweeney/turn-signal/internal/logic"
)

const (
	testDebounceTicks = 4
	testFlashInterval = 30
)

type harness struct {
	c         *Controller
	port      *gpio.FakePort
	debounce  *clock.FakeTimer
	heartbeat *clock.FakeTimer
	events    chan logic.Event
}

func newHarness(t *testing.T, policy logic.Policy, mode EdgeMode) *harness {
	t.Helper()
	h := &harness{
		port:      gpio.NewFakePort(),
		debounce:  clock.NewFakeTimer(),
		heartbeat: clock.NewFakeTimer(),
		events:    make(chan logic.Event, 16),
	}
	c, err := New(h.port, h.debounce, h.heartbeat, Config{
		Policy:        policy,
		FlashInterval: testFlashInterval,
		DebounceTicks: testDebounceTicks,
		EdgeMode:      mode,
		Events:        h.events,
		Now:           func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.c = c
	return h
}

// move sets the switch lines and runs the edge detector if the port raised
// a notification, as the dispatcher would.
func (h *harness) move(m gpio.Mask) {
	h.port.SetInputs(m)
	select {
	case <-h.port.Edges():
		h.c.OnEdge()
	default:
	}
}

func (h *harness) debounceTicks(n int) {
	for i := 0; i < n; i++ {
		h.c.OnDebounceTick()
	}
}

// settle moves the switch and lets the debounce timer expire.
func (h *harness) settle(m gpio.Mask) {
	h.move(m)
	h.debounceTicks(testDebounceTicks)
}

func (h *harness) beats(n int) {
	for i := 0; i < n; i++ {
		h.c.OnHeartbeat()
	}
}

func checkInvariant(t *testing.T, v Vars) {
	t.Helper()
	if v.Flash != logic.FlashFor(v.Turn) {
		t.Fatalf("flash %s does not match state %s", v.Flash, v.Turn)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	port := gpio.NewFakePort()
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no policy", Config{FlashInterval: 30, DebounceTicks: 4}},
		{"zero interval", Config{Policy: logic.LevelPolicy{}, DebounceTicks: 4}},
		{"zero debounce", Config{Policy: logic.LevelPolicy{}, FlashInterval: 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(port, clock.NewFakeTimer(), clock.NewFakeTimer(), tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStartTurnsBothLightsOn(t *testing.T) {
	h := newHarness(t, logic.LevelPolicy{}, EdgeBoth)

	if h.port.Output() != gpio.Lights {
		t.Errorf("expected both lights on, got %#02x", uint8(h.port.Output()))
	}
	if h.port.EdgesEnabled() != gpio.Switches {
		t.Errorf("expected edges enabled on both switches, got %#02x", uint8(h.port.EdgesEnabled()))
	}
	if !h.heartbeat.Enabled() {
		t.Error("expected heartbeat enabled")
	}
	if h.debounce.Enabled() {
		t.Error("debounce timer must start disabled")
	}
	v := h.c.Snapshot()
	if v.Turn != logic.Neutral || !v.Flash.Empty() {
		t.Errorf("expected NEUTRAL with empty mask, got %s/%s", v.Turn, v.Flash)
	}
}

func TestLevelScenarioLeftBlink(t *testing.T) {
	h := newHarness(t, logic.LevelPolicy{}, EdgeBoth)

	h.settle(gpio.SwitchLeft)

	v := h.c.Snapshot()
	if v.Turn != logic.Left {
		t.Fatalf("expected LEFT, got %s", v.Turn)
	}
	if v.Flash != logic.FlashMask(logic.LeftLED) {
		t.Fatalf("expected LEFT flash, got %s", v.Flash)
	}
	if h.port.Output() != gpio.Lights {
		t.Fatalf("tick 0: expected both lights on, got %#02x", uint8(h.port.Output()))
	}

	for tick := 1; tick <= 60; tick++ {
		h.beats(1)
		out := h.port.Output()
		if out&gpio.RightLight == 0 {
			t.Fatalf("tick %d: right light changed", tick)
		}
		wantLeft := true
		if tick >= 30 && tick < 60 {
			wantLeft = false
		}
		if (out&gpio.LeftLight != 0) != wantLeft {
			t.Fatalf("tick %d: left light on=%v, want %v", tick, out&gpio.LeftLight != 0, wantLeft)
		}
	}
}

func TestBlinkPeriodicity(t *testing.T) {
	h := newHarness(t, logic.LevelPolicy{}, EdgeBoth)
	h.settle(gpio.SwitchLeft)

	prev := h.port.Output()
	var toggledAt []int
	for tick := 1; tick <= 300; tick++ {
		h.beats(1)
		out := h.port.Output()
		if out&gpio.RightLight != prev&gpio.RightLight {
			t.Fatalf("tick %d: right light must not change", tick)
		}
		if out != prev {
			toggledAt = append(toggledAt, tick)
		}
		prev = out
	}

	if len(toggledAt) != 10 {
		t.Fatalf("expected 10 toggles in 300 ticks, got %d (%v)", len(toggledAt), toggledAt)
	}
	for i, tick := range toggledAt {
		if tick != (i+1)*30 {
			t.Errorf("toggle %d at tick %d, want %d", i, tick, (i+1)*30)
		}
	}
}

func TestNeutralHeartbeatTogglesNothing(t *testing.T) {
	h := newHarness(t, logic.LevelPolicy{}, EdgeBoth)

	h.beats(testFlashInterval)

	if h.port.Output() != gpio.Lights {
		t.Errorf("expected both lights on, got %#02x", uint8(h.port.Output()))
	}
	if len(h.port.Toggles) != 1 || h.port.Toggles[0] != 0 {
		t.Errorf("expected one empty toggle, got %v", h.port.Toggles)
	}
	v := h.c.Snapshot()
	if v.Counter != testFlashInterval {
		t.Errorf("counter: got %d, want %d", v.Counter, testFlashInterval)
	}
	if v.Toggles != 1 {
		t.Errorf("toggles: got %d, want 1", v.Toggles)
	}
}

func TestLevelIdempotentResolution(t *testing.T) {
	h := newHarness(t, logic.LevelPolicy{}, EdgeBoth)
	h.settle(gpio.SwitchRight)
	<-h.events

	// A second edge with the switch still held resolves the same position.
	h.c.OnEdge()
	h.debounceTicks(testDebounceTicks)

	v := h.c.Snapshot()
	if v.Turn != logic.Right {
		t.Errorf("expected RIGHT, got %s", v.Turn)
	}
	if v.Resolutions != 2 {
		t.Errorf("resolutions: got %d, want 2", v.Resolutions)
	}
	select {
	case e := <-h.events:
		t.Errorf("unexpected event for unchanged state: %+v", e)
	default:
	}
}

func TestDebounceSuppressesBounces(t *testing.T) {
	h := newHarness(t, logic.LevelPolicy{}, EdgeBoth)

	h.move(gpio.SwitchLeft)
	h.debounceTicks(2)
	h.move(0) // bounce back while notifications are muted
	h.debounceTicks(2)
	h.move(gpio.SwitchLeft)
	// The first tick after a latched edge only restarts the countdown.
	h.debounceTicks(testDebounceTicks)

	if v := h.c.Snapshot(); v.Resolutions != 0 {
		t.Fatalf("resolved %d times before the switch settled", v.Resolutions)
	}

	h.debounceTicks(1)

	v := h.c.Snapshot()
	if v.Resolutions != 1 {
		t.Fatalf("resolutions: got %d, want 1", v.Resolutions)
	}
	if v.Turn != logic.Left {
		t.Errorf("expected LEFT, got %s", v.Turn)
	}
	if h.port.EdgesEnabled() != gpio.Switches {
		t.Error("expected edge notifications re-enabled after resolution")
	}
	select {
	case <-h.port.Edges():
		t.Error("no stale edge may remain after resolution")
	default:
	}
}

func TestRepeatedEdgesRearmTimer(t *testing.T) {
	h := newHarness(t, logic.LevelPolicy{}, EdgeBoth)
	h.port.SetInputs(gpio.SwitchRight)

	for i := 0; i < 5; i++ {
		h.c.OnEdge()
		h.debounceTicks(testDebounceTicks - 1)
	}
	if v := h.c.Snapshot(); v.Resolutions != 0 {
		t.Fatalf("resolved during retrigger burst")
	}

	h.debounceTicks(1)
	v := h.c.Snapshot()
	if v.Resolutions != 1 || v.Turn != logic.Right {
		t.Errorf("expected a single RIGHT resolution, got %d/%s", v.Resolutions, v.Turn)
	}
}

func TestDebounceTicksIgnoredWhenIdle(t *testing.T) {
	h := newHarness(t, logic.LevelPolicy{}, EdgeBoth)
	h.port.SetInputs(gpio.SwitchLeft)
	<-h.port.Edges() // notification lost on purpose

	h.debounceTicks(10)
	if v := h.c.Snapshot(); v.Resolutions != 0 {
		t.Errorf("disarmed timer resolved %d times", v.Resolutions)
	}
}

func TestFailSafeReleaseWhileBlinking(t *testing.T) {
	h := newHarness(t, logic.LevelPolicy{}, EdgeBoth)
	h.settle(gpio.SwitchLeft)
	h.beats(30) // left lamp now off
	if h.port.Output()&gpio.LeftLight != 0 {
		t.Fatal("expected left lamp off mid-blink")
	}

	h.settle(0)

	v := h.c.Snapshot()
	if v.Turn != logic.Neutral || !v.Flash.Empty() {
		t.Errorf("expected NEUTRAL with empty mask, got %s/%s", v.Turn, v.Flash)
	}
	if h.port.Output() != gpio.Lights {
		t.Errorf("expected both lamps forced on, got %#02x", uint8(h.port.Output()))
	}
}

func TestBothLinesResolveToNeutral(t *testing.T) {
	h := newHarness(t, logic.LevelPolicy{}, EdgeBoth)
	h.settle(gpio.SwitchLeft)
	h.settle(gpio.Switches)

	v := h.c.Snapshot()
	if v.Turn != logic.Neutral {
		t.Errorf("expected NEUTRAL, got %s", v.Turn)
	}
	if v.Position != logic.Center {
		t.Errorf("expected CENTER position, got %s", v.Position)
	}
}

func TestReadErrorResolvesToNeutral(t *testing.T) {
	h := newHarness(t, logic.LevelPolicy{}, EdgeBoth)
	h.settle(gpio.SwitchLeft)

	h.port.ReadError = errors.New("line gone")
	h.c.OnEdge()
	h.debounceTicks(testDebounceTicks)

	if v := h.c.Snapshot(); v.Turn != logic.Neutral {
		t.Errorf("expected NEUTRAL after read failure, got %s", v.Turn)
	}
}

func TestToggleScenarioCrossOver(t *testing.T) {
	h := newHarness(t, logic.TogglePolicy{}, EdgeBoth)

	h.settle(gpio.SwitchLeft)
	h.settle(0) // release is not a transition
	v := h.c.Snapshot()
	if v.Turn != logic.Left {
		t.Fatalf("expected LEFT, got %s", v.Turn)
	}
	if v.Resolutions != 2 {
		t.Fatalf("resolutions: got %d, want 2", v.Resolutions)
	}

	h.beats(10)
	if v := h.c.Snapshot(); v.Counter != testFlashInterval-10 {
		t.Fatalf("counter: got %d, want %d", v.Counter, testFlashInterval-10)
	}

	h.settle(gpio.SwitchRight)
	v = h.c.Snapshot()
	if v.Turn != logic.Right {
		t.Fatalf("expected RIGHT, got %s", v.Turn)
	}
	if v.Flash != logic.FlashMask(logic.RightLED) {
		t.Errorf("expected RIGHT flash, got %s", v.Flash)
	}
	if v.Counter != testFlashInterval {
		t.Errorf("counter must restart the phase: got %d, want %d", v.Counter, testFlashInterval)
	}
	if h.port.Output() != gpio.Lights {
		t.Errorf("expected both lamps on, got %#02x", uint8(h.port.Output()))
	}
}

func TestToggleSymmetry(t *testing.T) {
	h := newHarness(t, logic.TogglePolicy{}, EdgeBoth)

	h.settle(gpio.SwitchRight)
	h.settle(0)
	h.settle(gpio.SwitchRight)
	h.settle(0)

	if v := h.c.Snapshot(); v.Turn != logic.Neutral {
		t.Errorf("expected NEUTRAL, got %s", v.Turn)
	}
}

func TestEventsEmittedOnTransitions(t *testing.T) {
	h := newHarness(t, logic.LevelPolicy{}, EdgeBoth)

	h.settle(gpio.SwitchLeft)
	h.settle(0)

	want := []logic.Event{
		{Type: logic.EventTurnLeft, From: logic.Neutral, To: logic.Left, Position: logic.LeftHeld},
		{Type: logic.EventTurnOff, From: logic.Left, To: logic.Neutral, Position: logic.Center},
	}
	for i, w := range want {
		select {
		case e := <-h.events:
			if e.Type != w.Type || e.From != w.From || e.To != w.To || e.Position != w.Position {
				t.Errorf("event %d: got %+v, want %+v", i, e, w)
			}
			if e.Timestamp.IsZero() {
				t.Errorf("event %d: missing timestamp", i)
			}
		default:
			t.Fatalf("event %d missing", i)
		}
	}
}

func TestFullEventQueueDoesNotBlock(t *testing.T) {
	port := gpio.NewFakePort()
	events := make(chan logic.Event) // nobody reads
	c, err := New(port, clock.NewFakeTimer(), clock.NewFakeTimer(), Config{
		Policy:        logic.LevelPolicy{},
		FlashInterval: testFlashInterval,
		DebounceTicks: testDebounceTicks,
		Events:        events,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Start()

	port.SetInputs(gpio.SwitchLeft)
	c.OnEdge()
	for i := 0; i < testDebounceTicks; i++ {
		c.OnDebounceTick()
	}
	if v := c.Snapshot(); v.Turn != logic.Left {
		t.Errorf("expected LEFT, got %s", v.Turn)
	}
}

func TestEdgeFlipPolarity(t *testing.T) {
	h := newHarness(t, logic.LevelPolicy{}, EdgeFlip)

	last := func() gpio.Polarity {
		pc := h.port.PolarityChanges
		return pc[len(pc)-1].Polarity
	}

	if last() != gpio.Rising {
		t.Fatalf("idle must await a press (rising), got %s", last())
	}

	h.settle(gpio.SwitchLeft)
	if last() != gpio.Falling {
		t.Fatalf("held switch must await a release (falling), got %s", last())
	}

	h.settle(0)
	if last() != gpio.Rising {
		t.Fatalf("centered switch must await a press (rising), got %s", last())
	}
	if v := h.c.Snapshot(); v.Turn != logic.Neutral {
		t.Errorf("expected NEUTRAL, got %s", v.Turn)
	}
}

func TestEdgeBothNeverChangesPolarity(t *testing.T) {
	h := newHarness(t, logic.LevelPolicy{}, EdgeBoth)
	h.settle(gpio.SwitchLeft)
	h.settle(0)
	h.settle(gpio.SwitchRight)

	for _, pc := range h.port.PolarityChanges {
		if pc.Polarity != gpio.BothEdges {
			t.Errorf("unexpected polarity change: %+v", pc)
		}
	}
}

func TestInvariantUnderRandomActivity(t *testing.T) {
	for _, p := range []logic.Policy{logic.LevelPolicy{}, logic.TogglePolicy{}} {
		t.Run(p.Name(), func(t *testing.T) {
			h := newHarness(t, p, EdgeBoth)
			rng := rand.New(rand.NewSource(42))
			inputs := []gpio.Mask{0, gpio.SwitchLeft, gpio.SwitchRight, gpio.Switches}

			for step := 0; step < 2000; step++ {
				switch rng.Intn(3) {
				case 0:
					h.move(inputs[rng.Intn(len(inputs))])
				case 1:
					h.debounceTicks(1)
				case 2:
					h.beats(1)
				}
				checkInvariant(t, h.c.Snapshot())
			}
		})
	}
}

func TestRunDispatchesUntilCancelled(t *testing.T) {
	h := newHarness(t, logic.LevelPolicy{}, EdgeBoth)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.c.Run(ctx) }()

	h.port.SetInputs(gpio.SwitchLeft)

	deadline := time.Now().Add(2 * time.Second)
	for !h.debounce.Enabled() {
		if time.Now().After(deadline) {
			t.Fatal("edge was not dispatched")
		}
		time.Sleep(time.Millisecond)
	}
	for i := 0; i < testDebounceTicks; i++ {
		h.debounce.Fire(time.Now())
	}

	select {
	case e := <-h.events:
		if e.To != logic.Left {
			t.Errorf("expected LEFT, got %s", e.To)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no transition dispatched")
	}

	for i := 0; i < testFlashInterval; i++ {
		h.heartbeat.Fire(time.Now())
	}
	deadline = time.Now().Add(2 * time.Second)
	for h.port.Output()&gpio.LeftLight != 0 {
		if time.Now().After(deadline) {
			t.Fatal("heartbeat did not toggle the left lamp")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestParseEdgeMode(t *testing.T) {
	for _, s := range []string{"both", "flip"} {
		if _, err := ParseEdgeMode(s); err != nil {
			t.Errorf("%q: unexpected error: %v", s, err)
		}
	}
	if _, err := ParseEdgeMode("rising"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
