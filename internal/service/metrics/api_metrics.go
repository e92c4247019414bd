package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stockcast",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of forecast API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockcast",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by forecast API endpoint",
		},
		[]string{"endpoint"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockcast",
			Subsystem: "api",
			Name:      "cache_hits_total",
			Help:      "Response cache hits by endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, CacheHits)
	})
}
