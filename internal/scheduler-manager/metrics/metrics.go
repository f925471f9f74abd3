// Package metrics holds the Prometheus collectors of the scheduler manager.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Namespace = "studio"
	Subsystem = "scheduler"
)

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	TasksPublished     prometheus.Counter
	TasksSynchronized  prometheus.Counter
	PublishFailures    prometheus.Counter
	ChangesReverted    prometheus.Counter
	PayrollCreated     prometheus.Counter
	PayrollDeleted     prometheus.Counter
	CalendarCommands   *prometheus.CounterVec
	CalendarResults    *prometheus.CounterVec
	DraftDigestsIssued prometheus.Counter
}

// New registers every collector on reg (the default registerer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Namespace: Namespace, Subsystem: Subsystem, Name: name, Help: help})
	}
	return &Metrics{
		TasksPublished:    counter("tasks_published_total", "Tasks moved out of DRAFT by publish"),
		TasksSynchronized: counter("tasks_synchronized_total", "Tasks synchronized to the external calendar on publish"),
		PublishFailures:   counter("publish_failures_total", "Tasks that failed during a publish batch"),
		ChangesReverted:   counter("changes_reverted_total", "Draft tasks reverted by cancel pending changes"),
		PayrollCreated:    counter("payroll_created_total", "Payroll records created from completed tasks"),
		PayrollDeleted:    counter("payroll_deleted_total", "Payroll records deleted from un-completed tasks"),
		CalendarCommands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: Subsystem,
			Name: "calendar_commands_total", Help: "Calendar commands dispatched",
		}, []string{"type", "result"}),
		CalendarResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: Subsystem,
			Name: "calendar_results_total", Help: "Calendar results consumed",
		}, []string{"type", "status"}),
		DraftDigestsIssued: counter("draft_digests_total", "Draft digest messages published"),
	}
}

func (m *Metrics) Published(n int) {
	if m != nil && n > 0 {
		m.TasksPublished.Add(float64(n))
	}
}

func (m *Metrics) Synchronized(n int) {
	if m != nil && n > 0 {
		m.TasksSynchronized.Add(float64(n))
	}
}

func (m *Metrics) PublishFailed() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

func (m *Metrics) Reverted(n int) {
	if m != nil && n > 0 {
		m.ChangesReverted.Add(float64(n))
	}
}

func (m *Metrics) PayrollCreatedInc() {
	if m != nil {
		m.PayrollCreated.Inc()
	}
}

func (m *Metrics) PayrollDeletedInc() {
	if m != nil {
		m.PayrollDeleted.Inc()
	}
}

func (m *Metrics) CalendarCommand(cmdType, result string) {
	if m != nil {
		m.CalendarCommands.WithLabelValues(cmdType, result).Inc()
	}
}

func (m *Metrics) CalendarResult(cmdType, status string) {
	if m != nil {
		m.CalendarResults.WithLabelValues(cmdType, status).Inc()
	}
}

func (m *Metrics) DigestIssued(n int) {
	if m != nil && n > 0 {
		m.DraftDigestsIssued.Add(float64(n))
	}
}
