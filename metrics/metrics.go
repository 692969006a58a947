// Package metrics holds the Prometheus instruments for tracking runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "rankwatch"

// Check outcomes.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
)

// Metrics groups the tracker's instruments. A nil *Metrics is valid and
// records nothing, so tests and one-off CLI runs need no registry.
type Metrics struct {
	ChecksTotal          *prometheus.CounterVec
	AlertsTotal          *prometheus.CounterVec
	RunDurationSeconds   prometheus.Histogram
	UnrecognizedLayouts  prometheus.Counter
	RunsInProgress       prometheus.Gauge
	LastRunSuccessRatio prometheus.Gauge
}

// New creates and registers the instruments with reg, or the default
// registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "checks_total",
			Help:      "Keyword checks by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		AlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "alerts_total",
			Help:      "Ranking alerts emitted by type",
		}, []string{"type"}),
		RunDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of tracking runs",
			Buckets:   []float64{1, 10, 30, 60, 120, 300, 600, 1200, 3600},
		}),
		UnrecognizedLayouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "unrecognized_layouts_total",
			Help:      "Results pages with no recognizable result containers",
		}),
		RunsInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "runs_in_progress",
			Help:      "Tracking runs currently executing",
		}),
		LastRunSuccessRatio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_success_ratio",
			Help:      "Share of successful checks in the last completed run",
		}),
	}
}

// Check counts one keyword check.
func (m *Metrics) Check(strategy, outcome string) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(strategy, outcome).Inc()
}

// UnrecognizedLayout counts a page whose layout was not recognized.
func (m *Metrics) UnrecognizedLayout() {
	if m == nil {
		return
	}
	m.UnrecognizedLayouts.Inc()
}

// Alert counts one emitted alert.
func (m *Metrics) Alert(alertType string) {
	if m == nil {
		return
	}
	m.AlertsTotal.WithLabelValues(alertType).Inc()
}

// RunStarted marks a run as executing.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunsInProgress.Inc()
}

// RunFinished records a completed run.
func (m *Metrics) RunFinished(seconds float64, successful, total int) {
	if m == nil {
		return
	}
	m.RunsInProgress.Dec()
	m.RunDurationSeconds.Observe(seconds)
	if total > 0 {
		m.LastRunSuccessRatio.Set(float64(successful) / float64(total))
	}
}
