// Package prometheus provides the Prometheus-backed implementation of the
// access core instrumentation points.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	accessmetrics "github.com/blulok/blulok-cloud/pkg/access/metrics"
	"github.com/blulok/blulok-cloud/pkg/metrics"
)

// accessMetrics implements accessmetrics.Metrics on the shared registry.
type accessMetrics struct {
	routePassesIssued prometheus.Counter
	fallbackExchanges *prometheus.CounterVec
	denylistCommands  *prometheus.CounterVec
	entriesPruned     prometheus.Counter
	cascadeQueueDepth prometheus.Gauge
}

// NewAccessMetrics creates Prometheus-backed access core metrics.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewAccessMetrics() accessmetrics.Metrics {
	if !metrics.IsEnabled() {
		return accessmetrics.NewNop()
	}

	reg := metrics.GetRegistry()

	return &accessMetrics{
		routePassesIssued: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "blulok_route_passes_issued_total",
				Help: "Total number of Route Passes signed and returned",
			},
		),
		fallbackExchanges: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blulok_fallback_exchanges_total",
				Help: "Total number of fallback token exchange attempts by result",
			},
			[]string{"result"}, // "ok", "rejected", "error"
		),
		denylistCommands: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blulok_denylist_commands_total",
				Help: "Total number of denylist commands unicast to facilities by type",
			},
			[]string{"cmd_type"}, // "DENYLIST_ADD", "DENYLIST_REMOVE"
		),
		entriesPruned: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "blulok_denylist_entries_pruned_total",
				Help: "Total number of expired denylist entries removed by the pruner",
			},
		),
		cascadeQueueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "blulok_cascade_queue_depth",
				Help: "Events currently queued for the cascade consumer",
			},
		),
	}
}

func (m *accessMetrics) RoutePassIssued() {
	m.routePassesIssued.Inc()
}

func (m *accessMetrics) FallbackExchange(result string) {
	m.fallbackExchanges.WithLabelValues(result).Inc()
}

func (m *accessMetrics) DenylistCommand(cmdType string) {
	m.denylistCommands.WithLabelValues(cmdType).Inc()
}

func (m *accessMetrics) EntriesPruned(count int64) {
	m.entriesPruned.Add(float64(count))
}

func (m *accessMetrics) CascadeQueueDepth(delta int) {
	m.cascadeQueueDepth.Add(float64(delta))
}
