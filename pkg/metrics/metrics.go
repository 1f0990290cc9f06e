// Package metrics exposes Prometheus counters for warehouse load runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LoaderMetrics counts per-record load outcomes and dimension growth.
type LoaderMetrics struct {
	registry *prometheus.Registry

	EventsProcessed *prometheus.CounterVec
	DimensionRows   *prometheus.CounterVec
	BridgeRows      *prometheus.CounterVec
}

// NewLoaderMetrics builds a LoaderMetrics backed by its own registry.
func NewLoaderMetrics() *LoaderMetrics {
	registry := prometheus.NewRegistry()

	m := &LoaderMetrics{
		registry: registry,
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetdw",
			Name:      "load_events_total",
			Help:      "Staged events processed by the warehouse loader, by outcome",
		}, []string{"result"}),
		DimensionRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetdw",
			Name:      "dimension_rows_created_total",
			Help:      "New dimension rows allocated during loads",
		}, []string{"dimension"}),
		BridgeRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetdw",
			Name:      "bridge_rows_inserted_total",
			Help:      "Bridge rows inserted during loads",
		}, []string{"bridge"}),
	}

	registry.MustRegister(m.EventsProcessed, m.DimensionRows, m.BridgeRows)
	return m
}

// Handler serves the metrics in Prometheus exposition format.
func (m *LoaderMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
