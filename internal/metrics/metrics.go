// Package metrics records node evaluation counts and timings with Prometheus.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/chazu/hardeen/pkg/processor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics is a graph.Observer backed by its own Prometheus registry.
type Metrics struct {
	registry    *prometheus.Registry
	evaluations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hardeen_node_evaluations_total",
				Help: "Total number of node computations by processor and result",
			},
			[]string{"processor", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hardeen_node_duration_seconds",
				Help:    "Duration of node computations",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"processor"},
		),
	}
	m.registry.MustRegister(m.evaluations, m.duration)
	return m
}

// Registry exposes the underlying registry, e.g. for promhttp.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// NodeEvaluated implements graph.Observer.
func (m *Metrics) NodeEvaluated(t processor.Type, d time.Duration, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	m.evaluations.WithLabelValues(t.String(), result).Inc()
	m.duration.WithLabelValues(t.String()).Observe(d.Seconds())
}

// WriteText writes every gathered metric family in the Prometheus text
// exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
