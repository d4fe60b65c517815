// Package metrics provides Prometheus metrics for the delivery gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filetolink_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filetolink_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Session metrics
	sessionWorkload = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "filetolink_session_workload",
			Help: "In-flight streams per backend session",
		},
		[]string{"session"},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filetolink_sessions_active",
			Help: "Number of registered backend sessions",
		},
	)

	sessionReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filetolink_session_reconnects_total",
			Help: "Backend session (re)connect attempts",
		},
		[]string{"session", "result"},
	)

	// Delivery metrics
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filetolink_deliveries_total",
			Help: "Delivery requests by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	deliveredBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filetolink_delivered_bytes_total",
			Help: "Bytes streamed to clients",
		},
		[]string{"session"},
	)

	// Backend metrics
	backendOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filetolink_backend_operation_duration_seconds",
			Help:    "Storage backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	backendOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filetolink_backend_operations_total",
			Help: "Total storage backend operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// Catalog metrics
	catalogQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filetolink_catalog_query_duration_seconds",
			Help:    "Metadata catalog query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver", "query"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filetolink_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	rateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filetolink_rate_limit_hits_total",
			Help: "Total rate limit rejections (429s)",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetSessionWorkload publishes a session's current workload.
func SetSessionWorkload(session string, load int) {
	sessionWorkload.WithLabelValues(session).Set(float64(load))
}

// SetSessionsActive sets the number of registered sessions.
func SetSessionsActive(count int) {
	sessionsActive.Set(float64(count))
}

// RecordSessionReconnect records a session start attempt.
func RecordSessionReconnect(session string, success bool) {
	sessionReconnectsTotal.WithLabelValues(session, result(success)).Inc()
}

// RecordDelivery records the outcome of a delivery request.
func RecordDelivery(mode, outcome string) {
	deliveriesTotal.WithLabelValues(mode, outcome).Inc()
}

// AddDeliveredBytes adds streamed bytes for a session.
func AddDeliveredBytes(session string, n int64) {
	deliveredBytes.WithLabelValues(session).Add(float64(n))
}

// RecordBackendOperation records a storage backend operation.
func RecordBackendOperation(backend, operation string, duration time.Duration, success bool) {
	backendOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	backendOperationsTotal.WithLabelValues(backend, operation, result(success)).Inc()
}

// RecordCatalogQuery records a catalog lookup duration.
func RecordCatalogQuery(driver, query string, duration time.Duration) {
	catalogQueryDuration.WithLabelValues(driver, query).Observe(duration.Seconds())
}

// SetDBConnectionsOpen sets the number of open database connections.
func SetDBConnectionsOpen(count int) {
	dbConnectionsOpen.Set(float64(count))
}

// RecordRateLimitHit records a rate limit rejection.
func RecordRateLimitHit() {
	rateLimitHitsTotal.Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics. It must
// wrap the ServeMux directly so the matched route pattern is visible after
// dispatch; raw paths carry link tokens and would explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		RecordHTTPRequest(r.Method, route, rw.statusCode, time.Since(start))
	})
}
