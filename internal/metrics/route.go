package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Routing metrics.
var (
	RouteDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_decisions_total",
			Help:      "Routed queries by answer source",
		},
		[]string{"source"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of routing pipeline stages in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	CacheWriteBackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_write_back_total",
			Help:      "Cache write-back outcomes",
		},
		[]string{"result"}, // inserted / bumped / skipped / error
	)
)

var routeOnce sync.Once

// RegisterRouteMetrics registers routing collectors with the default registry. Safe to call repeatedly.
func RegisterRouteMetrics() {
	routeOnce.Do(func() {
		prometheus.MustRegister(RouteDecisionsTotal, StageDuration, CacheWriteBackTotal)
	})
}
