package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for request pacing.
var (
	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lever_ratelimit_wait_seconds",
		Help:    "Time callers spent waiting for a rate limit slot",
		Buckets: []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	rateLimitAcquiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lever_ratelimit_acquired_total",
		Help: "Total number of rate limit slots granted",
	})

	rateLimitWaiting = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lever_ratelimit_waiting",
		Help: "Number of callers currently waiting for a rate limit slot",
	})

	rateLimitRedisErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lever_ratelimit_redis_errors_total",
		Help: "Total number of shared rate limit checks that failed and fell back to the local window",
	})
)
