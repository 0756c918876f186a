package pact

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pactline-backend/core/pact"
)

// Metrics tracks operation outcomes and escrow custody for the ledger.
type Metrics struct {
	ops     *prometheus.CounterVec
	events  prometheus.Counter
	custody prometheus.GaugeFunc
}

// NewMetrics registers the ledger metrics with reg and hooks an event sink
// so every ledger mutation is counted. A nil reg gets a private registry, so
// independent servers in one process never collide on collector names.
func NewMetrics(ledger *pact.Ledger, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	m := &Metrics{
		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pact_operations_total",
			Help: "Ledger operations by name and outcome.",
		}, []string{"op", "outcome"}),
		events: factory.NewCounter(prometheus.CounterOpts{
			Name: "pact_events_total",
			Help: "Ledger events published.",
		}),
		custody: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pact_native_custody_units",
			Help: "Native value currently held in escrow.",
		}, func() float64 { return float64(ledger.NativeCustody()) }),
	}
	ledger.Events().RegisterSink(func(pact.Event) { m.events.Inc() })
	return m
}

// Observe records one operation outcome.
func (m *Metrics) Observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	m.ops.WithLabelValues(op, outcome).Inc()
}
