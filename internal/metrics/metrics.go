// Path: internal/metrics/metrics.go

// Package metrics provides Prometheus metrics for the refresh pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chartwatch"

// Manager holds the pipeline's Prometheus collectors. Everything is
// registered on a private registry so the default Go collectors don't leak
// into the scrape output.
type Manager struct {
	registry *prometheus.Registry

	RowsScraped   *prometheus.CounterVec
	RowsRejected  *prometheus.CounterVec
	Enrichments   *prometheus.CounterVec
	CyclesTotal   *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	LastSuccess   prometheus.Gauge
}

// NewManager creates and registers the pipeline metrics.
func NewManager() *Manager {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Manager{
		registry: registry,
		RowsScraped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_scraped_total",
			Help:      "Validated chart rows accepted by the parser.",
		}, []string{"scope", "kind"}),
		RowsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_rejected_total",
			Help:      "Malformed chart rows excluded by the parser.",
		}, []string{"scope", "kind"}),
		Enrichments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Metadata lookups by outcome (hit, miss).",
		}, []string{"kind", "outcome"}),
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Refresh cycles by terminal state.",
		}, []string{"state"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_cycle_duration_seconds",
			Help:      "Wall-clock duration of a full refresh cycle.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_refresh_timestamp_seconds",
			Help:      "Unix time of the last cycle that completed without scope failures.",
		}),
	}
}

// Handler returns the HTTP handler serving this manager's registry.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
