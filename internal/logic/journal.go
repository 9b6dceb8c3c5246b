package logic

import "time"

// Journal counts transitions and paces heartbeat reports.
// Not safe for concurrent use; it is owned by the daemon loop.
type Journal struct {
	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
	last          *Event
}

// NewJournal creates a journal. The startTime is used for calculating uptime
// in heartbeat events.
func NewJournal(startTime time.Time) *Journal {
	return &Journal{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Record counts a transition event.
func (j *Journal) Record(e Event) {
	switch e.Type {
	case EventTurnLeft:
		j.eventCounts.Left++
	case EventTurnRight:
		j.eventCounts.Right++
	case EventTurnOff:
		j.eventCounts.Off++
	}
	ev := e
	j.last = &ev
}

// Last returns the most recently recorded event, or nil before the first one.
func (j *Journal) Last() *Event {
	return j.last
}

// EventCountsSnapshot returns a copy of the counters.
func (j *Journal) EventCountsSnapshot() EventCounts {
	return j.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (j *Journal) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(j.lastHeartbeat) < interval {
		return nil
	}

	j.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(j.startTime),
		Counts:    j.eventCounts,
	}
}
