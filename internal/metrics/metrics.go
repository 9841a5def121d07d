// Package metrics exposes resolver, entity and invoker counters on a
// private prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/invoke"
	"github.com/roach88/nimbus/internal/resolve"
)

// Metrics implements resolve.Observer, entity.Observer and invoke.Observer.
type Metrics struct {
	registry *prometheus.Registry

	resolutions        *prometheus.CounterVec
	resolutionDuration *prometheus.HistogramVec
	writes             *prometheus.CounterVec
	activations        *prometheus.CounterVec
	activationDuration *prometheus.HistogramVec
}

var (
	_ resolve.Observer = (*Metrics)(nil)
	_ entity.Observer  = (*Metrics)(nil)
	_ invoke.Observer  = (*Metrics)(nil)
)

// New registers the nimbus collectors, plus the Go and process collectors,
// on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nimbus_resolutions_total",
				Help: "Target resolutions by classification kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		resolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nimbus_resolution_duration_seconds",
				Help:    "Time spent resolving a target.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"kind"},
		),
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nimbus_entity_writes_total",
				Help: "Package, binding and action writes by operation and outcome.",
			},
			[]string{"kind", "op", "outcome"},
		),
		activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nimbus_activations_total",
				Help: "Recorded activations by resolution kind and status.",
			},
			[]string{"kind", "status"},
		),
		activationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nimbus_activation_duration_seconds",
				Help: "Executor time per activation.",
			},
			[]string{"kind"},
		),
	}
	m.registry.MustRegister(
		m.resolutions,
		m.resolutionDuration,
		m.writes,
		m.activations,
		m.activationDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveResolution implements resolve.Observer.
func (m *Metrics) ObserveResolution(kind, outcome string, elapsed time.Duration) {
	if kind == "" {
		kind = "unclassified"
	}
	m.resolutions.WithLabelValues(kind, outcome).Inc()
	m.resolutionDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveWrite implements entity.Observer.
func (m *Metrics) ObserveWrite(kind, op, outcome string) {
	m.writes.WithLabelValues(kind, op, outcome).Inc()
}

// ObserveActivation implements invoke.Observer.
func (m *Metrics) ObserveActivation(kind, status string, elapsed time.Duration) {
	m.activations.WithLabelValues(kind, status).Inc()
	m.activationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}
