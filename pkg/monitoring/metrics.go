package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	serviceName string
	gatherer    prometheus.Gatherer

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	permissionDecisions *prometheus.CounterVec
	auditEventsTotal    *prometheus.CounterVec
	cacheLookups        *prometheus.CounterVec
	cacheFetches        *prometheus.CounterVec
	cacheFetchDuration  *prometheus.HistogramVec
	cacheInvalidations  *prometheus.CounterVec
	authAttemptsTotal   *prometheus.CounterVec
}

// NewMetricsCollector creates a collector registered on the default registry
func NewMetricsCollector(serviceName string) *MetricsCollector {
	return NewMetricsCollectorWithRegistry(serviceName, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewMetricsCollectorWithRegistry creates a collector on a caller-owned registry
func NewMetricsCollectorWithRegistry(serviceName string, registerer prometheus.Registerer, gatherer prometheus.Gatherer) *MetricsCollector {
	m := &MetricsCollector{
		serviceName: serviceName,
		gatherer:    gatherer,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code", "service"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "service"},
		),
		permissionDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permission_decisions_total",
				Help: "Total number of permission decisions",
			},
			[]string{"role", "resource_type", "level", "allowed", "service"},
		),
		auditEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_events_total",
				Help: "Total number of audit events",
			},
			[]string{"event_type", "success", "service"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "request_cache_lookups_total",
				Help: "Total number of cached request lookups by result",
			},
			[]string{"endpoint", "result", "service"},
		),
		cacheFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "request_cache_fetches_total",
				Help: "Total number of upstream fetches issued on cache misses",
			},
			[]string{"endpoint", "status", "service"},
		),
		cacheFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "request_cache_fetch_duration_seconds",
				Help:    "Duration of upstream fetches in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint", "service"},
		),
		cacheInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "request_cache_invalidations_total",
				Help: "Total number of cache invalidations by scope",
			},
			[]string{"scope", "service"},
		),
		authAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_attempts_total",
				Help: "Total number of authentication attempts",
			},
			[]string{"role", "status", "service"},
		),
	}

	registerer.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.permissionDecisions,
		m.auditEventsTotal,
		m.cacheLookups,
		m.cacheFetches,
		m.cacheFetchDuration,
		m.cacheInvalidations,
		m.authAttemptsTotal,
	)

	return m
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordPermissionDecision records a permission evaluation outcome
func (m *MetricsCollector) RecordPermissionDecision(role, resource, level string, allowed bool) {
	m.permissionDecisions.WithLabelValues(role, resource, level, strconv.FormatBool(allowed), m.serviceName).Inc()
}

// RecordAuditEvent records audit event metrics
func (m *MetricsCollector) RecordAuditEvent(eventType string, success bool) {
	m.auditEventsTotal.WithLabelValues(eventType, strconv.FormatBool(success), m.serviceName).Inc()
}

// RecordCacheLookup records a cache hit or miss
func (m *MetricsCollector) RecordCacheLookup(endpoint string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(endpoint, result, m.serviceName).Inc()
}

// RecordCacheFetch records an upstream fetch issued on a miss
func (m *MetricsCollector) RecordCacheFetch(endpoint string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.cacheFetches.WithLabelValues(endpoint, status, m.serviceName).Inc()
	m.cacheFetchDuration.WithLabelValues(endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordCacheInvalidation records a single-key or full invalidation
func (m *MetricsCollector) RecordCacheInvalidation(scope string) {
	m.cacheInvalidations.WithLabelValues(scope, m.serviceName).Inc()
}

// RecordAuthAttempt records authentication attempt metrics
func (m *MetricsCollector) RecordAuthAttempt(role, status string) {
	m.authAttemptsTotal.WithLabelValues(role, status, m.serviceName).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// HTTPMiddleware creates middleware for HTTP request metrics
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		m.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(wrapper.statusCode), time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
