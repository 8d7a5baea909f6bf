// Package metrics exposes prometheus counters for generation runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

type Metrics struct {
	RowsGenerated  *prometheus.CounterVec
	EventsDerived  *prometheus.CounterVec
	EventsIngested *prometheus.CounterVec
	RepairsApplied *prometheus.CounterVec
}

// NewWith builds the metric set against the given registerer.
func NewWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RowsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datasmith_rows_generated_total",
			Help: "Base table rows produced by the snapshot builder.",
		}, []string{"table"}),
		EventsDerived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datasmith_events_derived_total",
			Help: "Events derived from the relational snapshot.",
		}, []string{"stream"}),
		EventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datasmith_events_ingested_total",
			Help: "Events submitted to the warehouse sink.",
		}, []string{"stream"}),
		RepairsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datasmith_repairs_applied_total",
			Help: "Constraint repairs applied to sampled rows.",
		}, []string{"rule"}),
	}
	reg.MustRegister(m.RowsGenerated, m.EventsDerived, m.EventsIngested, m.RepairsApplied)
	return m
}

// New registers the metric set on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// Module wires run metrics.
var Module = fx.Module("metrics",
	fx.Provide(New),
)
