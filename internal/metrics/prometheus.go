// Package metrics provides Prometheus metrics for the POS backend.
package metrics

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge

	acquireDuration    *prometheus.HistogramVec
	outstandingHandles prometheus.Gauge
	openPools          prometheus.Gauge
	doubleReleases     prometheus.Counter

	broadcastEvents      *prometheus.CounterVec
	broadcastSubscribers prometheus.Gauge
	deliveryFailures     *prometheus.CounterVec
	relayPublishes       *prometheus.CounterVec

	idempotencyLookups *prometheus.CounterVec

	registrations *prometheus.CounterVec
	healthStatus  prometheus.Gauge
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// NewMetrics creates and registers Prometheus metrics.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			requestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pos_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			requestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "pos_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: latencyBuckets,
				},
				[]string{"method", "path", "status"},
			),
			requestsInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "pos_http_requests_in_flight",
					Help: "Number of HTTP requests currently being processed",
				},
			),
			acquireDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "pos_datastore_acquire_duration_seconds",
					Help:    "Time spent waiting for a restaurant datastore connection",
					Buckets: latencyBuckets,
				},
				[]string{"outcome"},
			),
			outstandingHandles: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "pos_datastore_outstanding_handles",
					Help: "Datastore handles acquired and not yet released",
				},
			),
			openPools: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "pos_datastore_open_pools",
					Help: "Number of per-restaurant connection pools currently open",
				},
			),
			doubleReleases: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "pos_datastore_double_releases_total",
					Help: "Release calls on handles that were already released",
				},
			),
			broadcastEvents: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pos_broadcast_events_total",
					Help: "Events published to live dashboards",
				},
				[]string{"type"},
			),
			broadcastSubscribers: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "pos_broadcast_subscribers",
					Help: "Live dashboard connections currently subscribed",
				},
			),
			deliveryFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pos_broadcast_delivery_failures_total",
					Help: "Subscribers dropped because an event could not be delivered",
				},
				[]string{"reason"},
			),
			relayPublishes: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pos_broadcast_relay_publishes_total",
					Help: "Events published to the cross-instance relay",
				},
				[]string{"outcome"},
			),
			idempotencyLookups: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pos_idempotency_lookups_total",
					Help: "Idempotency key lookups on order creation",
				},
				[]string{"outcome"},
			),
			registrations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pos_tenant_registrations_total",
					Help: "Restaurant registration attempts",
				},
				[]string{"outcome"},
			),
			healthStatus: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "pos_health_status",
					Help: "Health status of the POS backend (1 = healthy, 0 = unhealthy)",
				},
			),
		}
	})

	return globalMetrics
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	m.requestsTotal.WithLabelValues(method, path, status).Inc()
	m.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncRequestsInFlight increments the in-flight requests counter.
func (m *Metrics) IncRequestsInFlight() {
	if m == nil {
		return
	}
	m.requestsInFlight.Inc()
}

// DecRequestsInFlight decrements the in-flight requests counter.
func (m *Metrics) DecRequestsInFlight() {
	if m == nil {
		return
	}
	m.requestsInFlight.Dec()
}

// RecordAcquire records a datastore acquire attempt. Outcome is one of
// "ok", "exhausted", "unavailable" or "canceled".
func (m *Metrics) RecordAcquire(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.acquireDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetOutstandingHandles sets the number of unreleased handles.
func (m *Metrics) SetOutstandingHandles(n int64) {
	if m == nil {
		return
	}
	m.outstandingHandles.Set(float64(n))
}

// SetOpenPools sets the number of open per-restaurant pools.
func (m *Metrics) SetOpenPools(n int) {
	if m == nil {
		return
	}
	m.openPools.Set(float64(n))
}

// IncDoubleRelease counts a release of an already released handle.
func (m *Metrics) IncDoubleRelease() {
	if m == nil {
		return
	}
	m.doubleReleases.Inc()
}

// RecordBroadcastEvent counts a published event.
func (m *Metrics) RecordBroadcastEvent(eventType string) {
	if m == nil {
		return
	}
	m.broadcastEvents.WithLabelValues(eventType).Inc()
}

// AddSubscribers adjusts the live subscriber gauge.
func (m *Metrics) AddSubscribers(delta int) {
	if m == nil {
		return
	}
	m.broadcastSubscribers.Add(float64(delta))
}

// RecordDeliveryFailure counts a dropped subscriber.
func (m *Metrics) RecordDeliveryFailure(reason string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(reason).Inc()
}

// RecordRelayPublish counts a relay publish attempt.
func (m *Metrics) RecordRelayPublish(outcome string) {
	if m == nil {
		return
	}
	m.relayPublishes.WithLabelValues(outcome).Inc()
}

// RecordIdempotencyLookup counts an idempotency key lookup by outcome
// (hit, miss, error).
func (m *Metrics) RecordIdempotencyLookup(outcome string) {
	if m == nil {
		return
	}
	m.idempotencyLookups.WithLabelValues(outcome).Inc()
}

// RecordRegistration counts a restaurant registration attempt.
func (m *Metrics) RecordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

// SetHealthStatus sets the health status.
func (m *Metrics) SetHealthStatus(healthy bool) {
	if m == nil {
		return
	}
	if healthy {
		m.healthStatus.Set(1)
	} else {
		m.healthStatus.Set(0)
	}
}

// MetricsServer provides a separate HTTP server for Prometheus metrics.
type MetricsServer struct {
	server *http.Server
	logger *zap.Logger
}

// NewMetricsServer creates a new metrics server.
func NewMetricsServer(port int, path string, logger *zap.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start starts the metrics server.
func (ms *MetricsServer) Start() error {
	ms.logger.Info("starting metrics server", zap.String("addr", ms.server.Addr))
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

// MetricsMiddleware creates middleware that records HTTP metrics. Requests are
// labeled with the matched route template so path parameters do not explode
// label cardinality.
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.IncRequestsInFlight()
			defer m.DecRequestsInFlight()

			start := time.Now()
			rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			m.RecordHTTPRequest(r.Method, routeTemplate(r), rw.statusCode, time.Since(start))
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code.
func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack lets websocket upgrades pass through the wrapper.
func (rw *metricsResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}
