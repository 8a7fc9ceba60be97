// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package subbuilder

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts the work done by Builders. A nil *Metrics records nothing.
type Metrics struct {
	PlansBuilt       prometheus.Counter
	BuildFailures    prometheus.Counter
	StrictFailures   prometheus.Counter
	UnknownFunctions prometheus.Counter
	// Relations is labelled with the kind of the emitted relation.
	Relations *prometheus.CounterVec
}

// NewMetrics returns unregistered metrics. Register them with Collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		PlansBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "substrait",
			Name:      "plans_built_total",
			Help:      "Number of logical plans successfully lowered to Substrait.",
		}),
		BuildFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "substrait",
			Name:      "build_failures_total",
			Help:      "Number of logical plans that failed to lower.",
		}),
		StrictFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "substrait",
			Name:      "strict_failures_total",
			Help:      "Number of lowerings rejected by strict mode.",
		}),
		UnknownFunctions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "substrait",
			Name:      "unknown_functions_total",
			Help:      "Number of distinct function signatures not found in the catalog.",
		}),
		Relations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "substrait",
			Name:      "relations_total",
			Help:      "Number of Substrait relations in successfully lowered plans, by kind.",
		}, []string{"kind"}),
	}
}

// Collectors returns every collector of m.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PlansBuilt, m.BuildFailures, m.StrictFailures, m.UnknownFunctions, m.Relations,
	}
}

func (m *Metrics) recordBuild(err error) {
	if m == nil {
		return
	}
	switch {
	case err == nil:
		m.PlansBuilt.Inc()
	case errors.Is(err, ErrStrictMode):
		m.StrictFailures.Inc()
		m.BuildFailures.Inc()
	default:
		m.BuildFailures.Inc()
	}
}

func (m *Metrics) recordUnknownFunctions(n int) {
	if m == nil {
		return
	}
	m.UnknownFunctions.Add(float64(n))
}

func (m *Metrics) recordRelations(kinds []string) {
	if m == nil {
		return
	}
	for _, kind := range kinds {
		m.Relations.WithLabelValues(kind).Inc()
	}
}
