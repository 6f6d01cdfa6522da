package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "helium_monitor"

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Job refresh metrics ────────────────────────────────────────────────

var (
	PollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "total",
		Help:      "Total number of refresh attempts per job.",
	}, []string{"job", "status"})

	PollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "duration_seconds",
		Help:      "Duration of a job refresh in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"job"})

	PollLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "last_success_timestamp",
		Help:      "Unix timestamp of the last successful refresh per job.",
	}, []string{"job"})

	JobsRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "jobs_registered",
		Help:      "Number of jobs currently scheduled.",
	})
)

// ── Backend cache metrics ──────────────────────────────────────────────

var (
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Backend cache lookups served without a network call.",
	}, []string{"store"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Backend cache lookups that required a refresh.",
	}, []string{"store"})

	CacheRefreshFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "refresh_failures_total",
		Help:      "Backend cache refreshes that returned an error.",
	}, []string{"store"})
)

// ── Integration metrics ────────────────────────────────────────────────

var (
	EntriesConfigured = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "integration",
		Name:      "entries",
		Help:      "Number of configured integration entries per kind.",
	}, []string{"integration"})

	SensorsRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "integration",
		Name:      "sensors",
		Help:      "Number of sensors created across all entries.",
	})
)
