// Package metrics defines the Prometheus instruments for tablekit.
//
// Instruments are registered on a caller-supplied registry so tests and
// multiple adapters in one process do not collide. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tablekit"

// Metrics holds every instrument.
type Metrics struct {
	// Operations counts adapter operations by op and result code ("ok" on success).
	Operations *prometheus.CounterVec
	// OperationDuration is adapter latency including simulated delay.
	OperationDuration *prometheus.HistogramVec
	// CacheLookups counts dataset cache reads by result (hit, miss).
	CacheLookups *prometheus.CounterVec
	// CacheLoads counts source loads.
	CacheLoads prometheus.Counter
	// QueryCacheLookups counts query-cache reads by kind (page, row) and result.
	QueryCacheLookups *prometheus.CounterVec
	// Retries counts retry attempts by op.
	Retries *prometheus.CounterVec
	// HTTPRequests counts HTTP requests by method, route and status.
	HTTPRequests *prometheus.CounterVec
	// HTTPDuration is HTTP handler latency.
	HTTPDuration *prometheus.HistogramVec
	// RateLimited counts requests rejected by the rate limiter.
	RateLimited prometheus.Counter
}

// New creates and registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of adapter operations",
			},
			[]string{"op", "code"},
		),
		OperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Adapter operation latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dataset_cache_lookups_total",
				Help:      "Dataset cache lookups by result",
			},
			[]string{"result"},
		),
		CacheLoads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_loads_total",
			Help:      "Dataset loads from the backing source",
		}),
		QueryCacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_cache_lookups_total",
				Help:      "Query cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
		Retries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Retry attempts by operation",
			},
			[]string{"op"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
	}
}

// ObserveOperation records one adapter operation.
func (m *Metrics) ObserveOperation(op, code string, d time.Duration) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.Operations.WithLabelValues(op, code).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// CacheLookup records a dataset cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result(hit)).Inc()
}

// CacheLoad records a source load.
func (m *Metrics) CacheLoad() {
	if m == nil {
		return
	}
	m.CacheLoads.Inc()
}

// QueryCacheLookup records a query cache hit or miss.
func (m *Metrics) QueryCacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	m.QueryCacheLookups.WithLabelValues(kind, result(hit)).Inc()
}

// Retry records a retry attempt.
func (m *Metrics) Retry(op string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(op).Inc()
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RateLimit records a rejected request.
func (m *Metrics) RateLimit() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

// Handler returns the /metrics handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func result(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
