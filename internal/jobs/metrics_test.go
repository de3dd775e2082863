package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	assert.NoError(t, m.Track("order:placed").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("order:placed").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("order:placed", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("order:placed", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("order:placed")))
}

func TestNotifiedDefaultsMenuType(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.Notified("order:status_changed", "")
	m.Notified("order:placed", "empresa")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("order:status_changed", "n/a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("order:placed", "empresa")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.Notified("order:placed", "usuario")
	assert.NoError(t, m.Track("x").End(nil))
}
