package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIsSingleton(t *testing.T) {
	assert.Same(t, NewMetrics(), NewMetrics())
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordHTTPRequest("GET", "/api/orders", 200, time.Millisecond)
	m.IncRequestsInFlight()
	m.DecRequestsInFlight()
	m.RecordAcquire("ok", time.Millisecond)
	m.SetOutstandingHandles(3)
	m.SetOpenPools(1)
	m.IncDoubleRelease()
	m.RecordBroadcastEvent("new_order")
	m.AddSubscribers(1)
	m.RecordDeliveryFailure("timeout")
	m.RecordRelayPublish("ok")
	m.RecordRegistration("ok")
	m.SetHealthStatus(true)
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	before := testutil.ToFloat64(m.broadcastEvents.WithLabelValues("delete_table"))
	m.RecordBroadcastEvent("delete_table")
	assert.Equal(t, before+1, testutil.ToFloat64(m.broadcastEvents.WithLabelValues("delete_table")))

	m.SetOutstandingHandles(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.outstandingHandles))

	m.SetHealthStatus(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.healthStatus))
	m.SetHealthStatus(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.healthStatus))
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	m := NewMetrics()

	router := mux.NewRouter()
	router.Use(MetricsMiddleware(m))
	router.HandleFunc("/api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)

	counter := m.requestsTotal.WithLabelValues(http.MethodDelete, "/api/orders/{id}", "204")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodDelete, "/api/orders/17", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestMetricsResponseWriterHijackUnsupported(t *testing.T) {
	rw := &metricsResponseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	assert.Error(t, err)
}
