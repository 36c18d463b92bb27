package supervisor

import (
	"time"

	"github.com/GeneArguelles/selenium-mcp/pkg/artifact"
	"github.com/GeneArguelles/selenium-mcp/pkg/health"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements MetricsCollector using Prometheus metrics
type PrometheusMetrics struct {
	stateTransitions *prometheus.CounterVec
	currentState     prometheus.Gauge

	fetchDuration *prometheus.HistogramVec
	healthProbes  *prometheus.CounterVec
	probeLatency  prometheus.Histogram

	launches            *prometheus.CounterVec
	terminationDuration prometheus.Histogram
	recoveryCycles      prometheus.Counter

	registry *prometheus.Registry
}

// NewPrometheusMetrics creates a collector with its own registry
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = "supervisor"
	}

	pm := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
	}

	pm.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of supervisor state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	pm.currentState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Current supervisor state as its numeric value",
		},
	)

	pm.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of artifact install attempts",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"artifact", "status"},
	)

	pm.healthProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_probes_total",
			Help:      "Total number of health probes by result",
		},
		[]string{"status"},
	)

	pm.probeLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "health_probe_latency_seconds",
			Help:      "Latency of health probes",
			Buckets:   prometheus.DefBuckets,
		},
	)

	pm.launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_launches_total",
			Help:      "Total number of server launch attempts",
		},
		[]string{"status"},
	)

	pm.terminationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "server_termination_duration_seconds",
			Help:      "Duration of server termination",
			Buckets:   prometheus.DefBuckets,
		},
	)

	pm.recoveryCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_cycles_total",
			Help:      "Total number of recovery cycles",
		},
	)

	pm.registry.MustRegister(
		pm.stateTransitions,
		pm.currentState,
		pm.fetchDuration,
		pm.healthProbes,
		pm.probeLatency,
		pm.launches,
		pm.terminationDuration,
		pm.recoveryCycles,
	)

	return pm
}

// StateTransition records a state transition
func (pm *PrometheusMetrics) StateTransition(from, to State) {
	pm.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	pm.currentState.Set(float64(to))
}

// FetchDuration records one install attempt
func (pm *PrometheusMetrics) FetchDuration(name artifact.Name, duration time.Duration, err error) {
	pm.fetchDuration.WithLabelValues(string(name), statusLabel(err)).Observe(duration.Seconds())
}

// HealthProbe records a health poll result
func (pm *PrometheusMetrics) HealthProbe(status health.Status, latency time.Duration) {
	pm.healthProbes.WithLabelValues(string(status)).Inc()
	pm.probeLatency.Observe(latency.Seconds())
}

// ServerLaunch records a launch attempt
func (pm *PrometheusMetrics) ServerLaunch(err error) {
	pm.launches.WithLabelValues(statusLabel(err)).Inc()
}

// ServerTermination records termination duration
func (pm *PrometheusMetrics) ServerTermination(duration time.Duration) {
	pm.terminationDuration.Observe(duration.Seconds())
}

// RecoveryCycle records entry into Recovering
func (pm *PrometheusMetrics) RecoveryCycle() {
	pm.recoveryCycles.Inc()
}

// Registry returns the Prometheus registry for serving /metrics
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Compile-time interface compliance check
var _ MetricsCollector = (*PrometheusMetrics)(nil)
