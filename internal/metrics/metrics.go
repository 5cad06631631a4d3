package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orcamento"

// Metrics holds the quote store counters on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	ItemsAdded         prometheus.Counter
	ItemsRemoved       prometheus.Counter
	ValidationFailures *prometheus.CounterVec
	PersistFailures    *prometheus.CounterVec
	LoadFallbacks      *prometheus.CounterVec
	ProposalsRendered  *prometheus.CounterVec
}

// New registers every counter on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ItemsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_added_total",
			Help:      "Quote items admitted to the store.",
		}),
		ItemsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_removed_total",
			Help:      "Quote items removed from the store.",
		}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Rejected item candidates by field.",
		}, []string{"field"}),
		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Failed writes to the persistence boundary by key.",
		}, []string{"key"}),
		LoadFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_fallbacks_total",
			Help:      "Persisted keys replaced by their default at load, by key and reason.",
		}, []string{"key", "reason"}),
		ProposalsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_rendered_total",
			Help:      "Proposal documents rendered by format.",
		}, []string{"format"}),
	}

	m.registry.MustRegister(
		m.ItemsAdded,
		m.ItemsRemoved,
		m.ValidationFailures,
		m.PersistFailures,
		m.LoadFallbacks,
		m.ProposalsRendered,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
