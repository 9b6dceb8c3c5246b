package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Turn          string         `json:"turn"`
	Flash         string         `json:"flash"`
	Position      string         `json:"position"`
	Resolutions   uint64         `json:"resolutions"`
	Toggles       uint64         `json:"toggles"`
	LastChange    *LastEventJSON `json:"last_change,omitempty"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"event_counts"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// LastEventJSON describes the most recent transition.
type LastEventJSON struct {
	Event     string `json:"event"`
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp string `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Left  int `json:"turn_left"`
	Right int `json:"turn_right"`
	Off   int `json:"turn_off"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Policy        string `json:"policy"`
	EdgeMode      string `json:"edge_mode"`
	HeartbeatUs   int64  `json:"heartbeat_us"`
	FlashInterval uint16 `json:"flash_interval"`
	FlashPeriodMs int64  `json:"flash_period_ms"`
	DebounceUs    int64  `json:"debounce_us"`
	StatusBeatMs  int64  `json:"status_heartbeat_ms"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Turn:          snap.Signal.Turn.String(),
		Flash:         snap.Signal.Flash.String(),
		Position:      snap.Signal.Position.String(),
		Resolutions:   snap.Signal.Resolutions,
		Toggles:       snap.Signal.Toggles,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Left:  snap.Counts.Left,
			Right: snap.Counts.Right,
			Off:   snap.Counts.Off,
		},
		Config: ConfigJSON{
			Policy:        snap.Config.Policy,
			EdgeMode:      snap.Config.EdgeMode,
			HeartbeatUs:   snap.Config.HeartbeatUs,
			FlashInterval: snap.Config.FlashInterval,
			FlashPeriodMs: snap.Config.FlashPeriodMs,
			DebounceUs:    snap.Config.DebounceUs,
			StatusBeatMs:  snap.Config.StatusBeatMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
		},
	}

	if e := snap.LastEvent; e != nil {
		inner.LastChange = &LastEventJSON{
			Event:     string(e.Type),
			From:      e.From.String(),
			To:        e.To.String(),
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		}
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
