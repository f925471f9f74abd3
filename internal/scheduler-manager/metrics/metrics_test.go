package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Published(3)
	m.Synchronized(0)
	m.CalendarCommand("sync_task", "ok")
	m.CalendarCommand("sync_task", "ok")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.TasksPublished))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TasksSynchronized))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CalendarCommands.WithLabelValues("sync_task", "ok")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Published(1)
		m.PublishFailed()
		m.PayrollCreatedInc()
		m.CalendarResult("delete_event", "FAILED")
	})
}
