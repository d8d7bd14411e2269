package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/resonantmigration/worldstate-service/internal/track"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 increases, SLO breaches.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream signal fetch rate per provider. Watch for: error vs success ratio per signal.
	SignalFetchesTotal *prometheus.CounterVec

	// Upstream signal latency. Watch for: p95 near the per-fetcher timeout (fallback risk).
	SignalFetchDuration *prometheus.HistogramVec

	// Fallback substitutions per signal and tier (static, derived, simulated).
	SignalFallbacksTotal *prometheus.CounterVec

	// Fully assembled world states. rate() gives cold-aggregation QPS.
	WorldStatesGeneratedTotal prometheus.Counter

	// Cache hits for quantized locations. Hit rate = hits/(hits+worldStatesGeneratedTotal).
	CacheHitsTotal prometheus.Counter

	// Cache backend errors (memcached unreachable etc.). In-memory backend never increments.
	CacheErrorsTotal *prometheus.CounterVec

	// Rate limit denials (429). Watch for: abusive identities, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per provider (0 closed, 1 open, 2 half-open).
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions per provider.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Coalesced aggregation cycles (request joined an in-flight cycle).
	CoalescedCyclesTotal prometheus.Counter

	// Cache warming runs and failures.
	CacheWarmingTotal       prometheus.Counter
	CacheWarmingErrorsTotal prometheus.Counter

	windowGaugesOnce sync.Once
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
	SignalFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalFetchesTotal",
			Help: "Total upstream fetch attempts per signal",
		},
		[]string{"signal", "status"},
	)
	SignalFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signalFetchDurationSeconds",
			Help:    "Upstream fetch latency in seconds per signal",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"signal"},
	)
	SignalFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalFallbacksTotal",
			Help: "Fallback substitutions per signal and tier (static, derived, simulated)",
		},
		[]string{"signal", "tier"},
	)
	WorldStatesGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "worldStatesGeneratedTotal",
			Help: "Fully assembled world states (cache misses)",
		},
	)
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Cache hits for quantized locations",
		},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend errors per operation",
		},
		[]string{"operation"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per provider (0 closed, 1 open, 2 half-open)",
		},
		[]string{"provider"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions per provider",
		},
		[]string{"provider", "from", "to"},
	)
	CoalescedCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coalescedCyclesTotal",
			Help: "Requests that joined an in-flight aggregation cycle instead of starting one",
		},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs that had at least one failed location",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		SignalFetchesTotal, SignalFetchDuration, SignalFallbacksTotal,
		WorldStatesGeneratedTotal, CacheHitsTotal, CacheErrorsTotal,
		RateLimitDeniedTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		CoalescedCyclesTotal,
		CacheWarmingTotal, CacheWarmingErrorsTotal,
	)
}

// RegisterWindowGauges registers gauges over the sliding outcome window.
// Call from main after config load with cfg.OverloadWindow.
func RegisterWindowGauges(window time.Duration) {
	windowGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "requestsInWindow",
					Help: "Requests hitting the world-state path in the sliding window",
				},
				func() float64 { return float64(track.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in the sliding window",
				},
				func() float64 { return float64(track.DenialCount(window)) },
			),
		)
	})
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
