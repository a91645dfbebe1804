// Package metrics counts export and reminder outcomes for /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid"
	OutcomeFailed      = "failed"
	OutcomeScheduled   = "scheduled"
	OutcomeDenied      = "denied"
	OutcomePassed      = "passed"
	OutcomeDelivered   = "delivered"
	OutcomeUndelivered = "undelivered"
)

// Metrics owns a private registry so that several instances (tests) can
// coexist in one process.
type Metrics struct {
	registry  *prometheus.Registry
	exports   *prometheus.CounterVec
	reminders *prometheus.CounterVec
	imported  prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		exports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "planevent_exports_total",
			Help: "Export actions by emitter and outcome",
		}, []string{"emitter", "outcome"}),
		reminders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "planevent_reminders_total",
			Help: "Reminder scheduling and delivery outcomes",
		}, []string{"outcome"}),
		imported: factory.NewCounter(prometheus.CounterOpts{
			Name: "planevent_contacts_imported_total",
			Help: "Addresses accepted from CSV imports",
		}),
	}
}

// Export records one export attempt. A nil receiver is a no-op.
func (m *Metrics) Export(emitter, outcome string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(emitter, outcome).Inc()
}

func (m *Metrics) Reminder(outcome string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Imported(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.imported.Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
