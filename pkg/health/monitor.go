package health

import (
	"context"
	"log/slog"
	"time"
)

// Monitor runs bounded polling loops against a Prober.
type Monitor struct {
	prober   Prober
	logger   *slog.Logger
	observer func(Snapshot)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithObserver registers a callback invoked after every poll.
func WithObserver(fn func(Snapshot)) Option {
	return func(m *Monitor) {
		m.observer = fn
	}
}

// NewMonitor creates a Monitor.
func NewMonitor(prober Prober, opts ...Option) *Monitor {
	m := &Monitor{
		prober: prober,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Poll performs exactly one probe.
func (m *Monitor) Poll(ctx context.Context) Snapshot {
	snap := m.prober.Probe(ctx)
	if m.observer != nil {
		m.observer(snap)
	}
	return snap
}

// AwaitHealthy polls up to maxAttempts times with a fixed interval between
// attempts. It returns the first healthy snapshot, or the last one when
// attempts run out or ctx is done. Exhaustion is not an error.
func (m *Monitor) AwaitHealthy(ctx context.Context, maxAttempts int, interval time.Duration) Snapshot {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var last Snapshot
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		last = m.Poll(ctx)
		last.Attempt = attempt

		if last.Healthy() {
			m.logger.Info("health check passed",
				"attempt", attempt,
				"phase", last.Phase,
				"uptime_seconds", last.UptimeSeconds,
				"chrome_path", last.ChromePath)
			return last
		}

		m.logger.Warn("health check not passing",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"status", last.Status,
			"error", last.Err)

		if attempt == maxAttempts {
			break
		}
		if !sleep(ctx, interval) {
			m.logger.Info("health polling cancelled", "attempt", attempt)
			break
		}
	}

	return last
}

// sleep waits for d, returning false if ctx finished first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
