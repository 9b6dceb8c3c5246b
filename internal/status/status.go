// Package status provides a thread-safe status tracker for the turn-signal daemon.
// It is read by HTTP handlers and by the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/turn-signal/internal/logic"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Policy        string
	EdgeMode      string
	HeartbeatUs   int64
	FlashInterval uint16
	FlashPeriodMs int64
	DebounceUs    int64
	StatusBeatMs  int64
	Broker        string
	HTTPAddr      string
}

// Signal is the controller state at the time of the last update.
type Signal struct {
	Turn        logic.TurnState
	Flash       logic.FlashMask
	Position    logic.SwitchPosition
	Resolutions uint64
	Toggles     uint64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Signal        Signal
	Counts        logic.EventCounts
	LastEvent     *logic.Event
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the controller state and transition counts.
func (t *Tracker) Update(sig Signal, counts logic.EventCounts, last *logic.Event) {
	t.mu.Lock()
	t.snap.Signal = sig
	t.snap.Counts = counts
	if last != nil {
		ev := *last
		t.snap.LastEvent = &ev
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
