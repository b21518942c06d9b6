package health

import (
	"time"
)

// Snapshot is a read-only view of the poll scheduler state
type Snapshot struct {
	Running           bool      `json:"running"`
	Interval          string    `json:"interval"`
	Iterations        int64     `json:"iterations"`
	LastTickAt        time.Time `json:"last_tick_at"`
	LastSuccessAt     time.Time `json:"last_success_at"`
	ConsecutiveErrors int64     `json:"consecutive_errors"`
	TotalErrors       int64     `json:"total_errors"`
	NextTickAt        time.Time `json:"next_tick_at"`
}

// UntilNextTick returns the time left until the next scheduled tick, zero if it is overdue or unknown
func (s Snapshot) UntilNextTick(now time.Time) time.Duration {
	if s.NextTickAt.IsZero() || !s.NextTickAt.After(now) {
		return 0
	}

	return s.NextTickAt.Sub(now)
}

// Reporter exposes the current health of a component
type Reporter interface {
	Snapshot() Snapshot
}
