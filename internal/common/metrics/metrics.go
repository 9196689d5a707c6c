// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_items_processed_total",
			Help: "Total number of batch items processed, by outcome",
		},
		[]string{"outcome"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_cache_requests_total",
			Help: "Cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	InvokeRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "router_invoke_retries_total",
			Help: "Total number of backend invocation retries",
		},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "router_batch_duration_seconds",
			Help: "Duration of full batch processing in seconds",
		},
	)
)
