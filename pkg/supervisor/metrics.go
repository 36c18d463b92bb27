package supervisor

import (
	"time"

	"github.com/GeneArguelles/selenium-mcp/pkg/artifact"
	"github.com/GeneArguelles/selenium-mcp/pkg/health"
)

// MetricsCollector defines the interface for collecting supervisor metrics
type MetricsCollector interface {
	// StateTransition records a state machine transition
	StateTransition(from, to State)

	// FetchDuration records one install attempt
	FetchDuration(name artifact.Name, duration time.Duration, err error)

	// HealthProbe records the result of a single health poll
	HealthProbe(status health.Status, latency time.Duration)

	// ServerLaunch records a launch attempt
	ServerLaunch(err error)

	// ServerTermination records how long terminating the server took
	ServerTermination(duration time.Duration)

	// RecoveryCycle records entry into Recovering
	RecoveryCycle()
}

// noopMetricsCollector is a no-op implementation of MetricsCollector
type noopMetricsCollector struct{}

func (n *noopMetricsCollector) StateTransition(from, to State)                                  {}
func (n *noopMetricsCollector) FetchDuration(name artifact.Name, d time.Duration, err error) {}
func (n *noopMetricsCollector) HealthProbe(status health.Status, latency time.Duration)      {}
func (n *noopMetricsCollector) ServerLaunch(err error)                                       {}
func (n *noopMetricsCollector) ServerTermination(duration time.Duration)                     {}
func (n *noopMetricsCollector) RecoveryCycle()                                               {}

// NewNoopMetricsCollector creates a no-op metrics collector
func NewNoopMetricsCollector() MetricsCollector {
	return &noopMetricsCollector{}
}
