package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Weather API call rate by outcome (success, client_error, server_error, rate_limited, error, circuit_open).
	RemoteCallsTotal *prometheus.CounterVec

	// Weather API latency. Watch for: p99 near the transport timeout.
	RemoteCallDuration *prometheus.HistogramVec

	// Remote failures by category (configuration, name_resolution, authentication, not_found, timeout, tls, unknown).
	RemoteErrorsTotal *prometheus.CounterVec

	// Circuit breaker state: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState prometheus.Gauge

	// Circuit breaker transitions.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Lookups answered from a fresh cache entry without a remote call.
	CacheHitsTotal prometheus.Counter

	// Lookups that went to the remote source, by reason (absent, expired, forced, coordinates).
	CacheMissesTotal *prometheus.CounterVec

	// Stale entries served after a failed refresh. Watch for: sustained growth = upstream outage.
	StaleCacheServesTotal prometheus.Counter

	// Age of stale entries when served.
	StaleCacheAgeSeconds prometheus.Histogram

	// Store operation latency by operation and result.
	StoreOperationDurationSeconds *prometheus.HistogramVec

	// Store errors by operation.
	StoreErrorsTotal *prometheus.CounterVec

	// Cache misses for a city that overlapped another in-progress miss for the same city.
	ConcurrentMissesTotal prometheus.Counter

	// Favorite mutations by operation (add, remove) and result (success, error).
	FavoriteMutationsTotal *prometheus.CounterVec

	// Live favorites subscribers.
	FavoriteSubscribers prometheus.Gauge

	// Background job runs by job and result.
	JobRunsTotal *prometheus.CounterVec

	// Background job duration.
	JobDurationSeconds *prometheus.HistogramVec

	// Weather records removed by the purge job.
	PurgedRecordsTotal prometheus.Counter

	// Rate limit denials.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	RemoteCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of weather API calls by outcome",
		},
		[]string{"status"},
	)
	RemoteCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "Weather API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)
	RemoteErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiErrorsTotal",
			Help: "Weather API failures by category",
		},
		[]string{"category"},
	)
	CircuitBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Weather API circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Weather API circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "City lookups served from a fresh cache entry",
		},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Lookups that required a weather API call, by reason",
		},
		[]string{"reason"},
	)
	StaleCacheServesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "staleCacheServesTotal",
			Help: "Cached entries served after a failed refresh",
		},
	)
	StaleCacheAgeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "staleCacheAgeSeconds",
			Help:    "Age of cached entries served after a failed refresh",
			Buckets: []float64{1800, 3600, 3 * 3600, 6 * 3600, 12 * 3600, 24 * 3600, 7 * 24 * 3600},
		},
	)
	StoreOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storeOperationDurationSeconds",
			Help:    "Local store operation latency",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"operation", "result"},
	)
	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeErrorsTotal",
			Help: "Local store errors by operation",
		},
		[]string{"operation"},
	)
	ConcurrentMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "concurrentCacheMissesTotal",
			Help: "Cache misses that overlapped another in-progress miss for the same city",
		},
	)
	FavoriteMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favoriteMutationsTotal",
			Help: "Favorite add/remove operations by result",
		},
		[]string{"operation", "result"},
	)
	FavoriteSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "favoriteSubscribers",
			Help: "Live favorites list subscribers",
		},
	)
	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobRunsTotal",
			Help: "Background job runs by job and result",
		},
		[]string{"job", "result"},
	)
	JobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobDurationSeconds",
			Help:    "Background job duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
	PurgedRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "purgedRecordsTotal",
			Help: "Cached weather records removed by the purge job",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		RemoteCallsTotal, RemoteCallDuration, RemoteErrorsTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		CacheHitsTotal, CacheMissesTotal, StaleCacheServesTotal, StaleCacheAgeSeconds,
		StoreOperationDurationSeconds, StoreErrorsTotal, ConcurrentMissesTotal,
		FavoriteMutationsTotal, FavoriteSubscribers,
		JobRunsTotal, JobDurationSeconds, PurgedRecordsTotal,
		RateLimitDeniedTotal,
	)
}

// CircuitBreakerStateValue maps a state name to the circuitBreakerState gauge value.
func CircuitBreakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordCircuitBreakerTransition updates the state gauge and transition counter.
func RecordCircuitBreakerTransition(from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(from, to).Inc()
	CircuitBreakerState.Set(CircuitBreakerStateValue(to))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
