package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RunStarted()
	m.Check("http", OutcomeFound)
	m.Check("http", OutcomeFound)
	m.Check("http", OutcomeFailed)
	m.Alert("major_movement")
	m.UnrecognizedLayout()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsInProgress))

	m.RunFinished(12, 2, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChecksTotal.WithLabelValues("http", OutcomeFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChecksTotal.WithLabelValues("http", OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsTotal.WithLabelValues("major_movement")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnrecognizedLayouts))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsInProgress))
	assert.InDelta(t, 2.0/3.0, testutil.ToFloat64(m.LastRunSuccessRatio), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunDurationSeconds))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RunStarted()
		m.Check("http", OutcomeNotFound)
		m.Alert("new_entry")
		m.UnrecognizedLayout()
		m.RunFinished(1, 1, 1)
	})
}
