package status

import "time"

// HeartbeatData describes one due heartbeat.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
}

// Heartbeat decides when periodic liveness events are due.
type Heartbeat struct {
	start time.Time
	last  time.Time
}

// NewHeartbeat starts the heartbeat schedule at start.
func NewHeartbeat(start time.Time) *Heartbeat {
	return &Heartbeat{start: start, last: start}
}

// Check returns heartbeat data if interval has elapsed since the last
// heartbeat (or start). Returns nil if not yet due or if interval <= 0.
func (h *Heartbeat) Check(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 || now.Sub(h.last) < interval {
		return nil
	}
	h.last = now
	return &HeartbeatData{Timestamp: now, Uptime: now.Sub(h.start)}
}
