package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LookupsTotal tracks terminal outcomes by taxonomy code ("OK" on success)
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regfetch_lookups_total",
			Help: "Total number of lookups by terminal outcome",
		},
		[]string{"outcome"},
	)

	// LookupDuration tracks end-to-end orchestration latency
	LookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "regfetch_lookup_duration_seconds",
			Help:    "End-to-end lookup latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// UpstreamCallsTotal tracks upstream calls per source and operation
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regfetch_upstream_calls_total",
			Help: "Total number of upstream calls",
		},
		[]string{"source", "operation"},
	)

	// UpstreamErrorsTotal tracks upstream failures per source and taxonomy code
	UpstreamErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regfetch_upstream_errors_total",
			Help: "Total number of upstream failures",
		},
		[]string{"source", "code"},
	)

	// UpstreamLatency tracks upstream call latency
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "regfetch_upstream_latency_seconds",
			Help:    "Upstream call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "operation"},
	)

	// RetryAttemptsTotal tracks retry attempts beyond the first per source
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regfetch_retry_attempts_total",
			Help: "Total number of retry attempts",
		},
		[]string{"source"},
	)

	// SessionRefreshesTotal tracks stat-office session creations
	SessionRefreshesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regfetch_session_refreshes_total",
			Help: "Total number of stat-office session creations",
		},
	)

	// RateLimiterQueueDepth tracks operations waiting on the stat-office lane
	RateLimiterQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "regfetch_rate_limiter_queue_depth",
			Help: "Operations queued behind the stat-office rate limiter",
		},
	)

	// DBConnectionPoolUsage tracks audit store pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "regfetch_db_pool_usage_percent",
			Help: "Audit store connection pool usage percentage",
		},
	)
)
