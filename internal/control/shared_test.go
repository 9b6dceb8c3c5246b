package control

import (
	"sync"
	"testing"

	"github.com/sweeney/turn-signal/internal/clock"
	"github.com/sweeney/turn-signal/internal/logic"
)

func TestNewSharedStateDefaults(t *testing.T) {
	s := NewSharedState(nil, 30)
	v := s.Load()
	if v.Turn != logic.Neutral {
		t.Errorf("expected NEUTRAL, got %s", v.Turn)
	}
	if !v.Flash.Empty() {
		t.Errorf("expected empty flash mask, got %s", v.Flash)
	}
	if v.Interval != 30 || v.Counter != 30 {
		t.Errorf("expected interval and counter 30, got %d/%d", v.Interval, v.Counter)
	}
}

func TestCriticalSectionsDoNotInterleave(t *testing.T) {
	s := NewSharedState(nil, 30)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				s.Critical(func(v *Vars) {
					// A writer switching state and mask together.
					if w%2 == 0 {
						v.Turn = logic.Left
						v.Flash = logic.FlashFor(logic.Left)
					} else {
						v.Turn = logic.Right
						v.Flash = logic.FlashFor(logic.Right)
					}
					v.Toggles++
				})
			}
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			v := s.Load()
			if v.Flash != logic.FlashFor(v.Turn) {
				t.Errorf("torn read: %s/%s", v.Turn, v.Flash)
				return
			}
		}
	}()
	wg.Wait()

	if got := s.Load().Toggles; got != 4000 {
		t.Errorf("toggles: got %d, want 4000", got)
	}
}

func TestDebounceTimerCountsToCompare(t *testing.T) {
	src := clock.NewFakeTimer()
	d := NewDebounceTimer(src, 3)

	if d.Armed() || src.Enabled() {
		t.Fatal("new timer must be disarmed")
	}
	if d.Tick() {
		t.Fatal("disarmed timer must not expire")
	}

	d.Arm()
	if !src.Enabled() {
		t.Fatal("arming must enable the timebase")
	}
	if d.Tick() || d.Tick() {
		t.Fatal("expired early")
	}
	if !d.Tick() {
		t.Fatal("expected expiry on third tick")
	}
	if !d.Expired() {
		t.Error("expected expiry flag set")
	}

	d.ClearFlag()
	d.Disarm()
	if d.Expired() || d.Armed() || src.Enabled() {
		t.Error("expected flag cleared and timer disarmed")
	}
}

func TestDebounceTimerArmRestarts(t *testing.T) {
	d := NewDebounceTimer(clock.NewFakeTimer(), 3)
	d.Arm()
	d.Tick()
	d.Tick()
	d.Arm()
	if d.Tick() || d.Tick() {
		t.Fatal("rearm must restart the countdown")
	}
	if !d.Tick() {
		t.Error("expected expiry three ticks after rearm")
	}
}
