// Package health probes the launched server and classifies its readiness.
package health

import "time"

// Status is the classification of one probe.
type Status string

const (
	StatusHealthy     Status = "healthy"
	StatusRecovering  Status = "recovering"
	StatusUnhealthy   Status = "unhealthy"
	StatusUnreachable Status = "unreachable"
)

// Snapshot is the result of a single probe.
type Snapshot struct {
	Status        Status
	Phase         string
	UptimeSeconds float64
	ChromePath    string

	// Attempt is the 1-based poll number within AwaitHealthy
	Attempt int
	// Err carries the transport or HTTP failure behind an unreachable status
	Err error

	ProbedAt time.Time
	Latency  time.Duration
}

// Healthy reports whether the snapshot is a healthy result.
func (s Snapshot) Healthy() bool {
	return s.Status == StatusHealthy
}

// classify maps a reported status string.
func classify(reported string) Status {
	switch Status(reported) {
	case StatusHealthy:
		return StatusHealthy
	case StatusRecovering:
		return StatusRecovering
	default:
		return StatusUnhealthy
	}
}
