// Package health provides liveness and readiness endpoints for the POS backend.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/TusharKoshti-1/Qr-System/internal/metrics"
	"go.uber.org/zap"
)

// Pinger is a dependency whose reachability decides readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthCheck manages health check functionality.
type HealthCheck struct {
	checks        map[string]Pinger
	metrics       *metrics.Metrics
	logger        *zap.Logger
	checkInterval time.Duration
	checkTimeout  time.Duration

	mu           sync.RWMutex
	ready        bool
	shuttingDown bool
	results      map[string]string
	lastCheck    time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHealthCheck creates a HealthCheck over the named dependencies. Call
// Start to check them periodically.
func NewHealthCheck(checks map[string]Pinger, m *metrics.Metrics, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{
		checks:        checks,
		metrics:       m,
		logger:        logger,
		checkInterval: 5 * time.Second,
		checkTimeout:  2 * time.Second,
		results:       make(map[string]string),
		stopCh:        make(chan struct{}),
	}
}

// LivenessResponse represents the response for the liveness check.
type LivenessResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the response for the readiness check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// LivenessHandler handles GET /health requests.
// Returns 200 OK if the process is running.
func (hc *HealthCheck) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{Status: "healthy"})
}

// ReadinessHandler handles GET /ready requests. A server that is shutting
// down is never ready; otherwise a fresh check runs when the last one failed.
func (hc *HealthCheck) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hc.mu.RLock()
	shuttingDown := hc.shuttingDown
	isReady := hc.ready
	results := copyResults(hc.results)
	hc.mu.RUnlock()

	if shuttingDown {
		writeJSON(w, http.StatusServiceUnavailable, ReadinessResponse{
			Status: "not_ready",
			Error:  "shutting down",
		})
		return
	}

	if !isReady {
		ctx, cancel := context.WithTimeout(r.Context(), hc.checkTimeout)
		isReady, results = hc.runChecks(ctx)
		cancel()
	}

	if !isReady {
		writeJSON(w, http.StatusServiceUnavailable, ReadinessResponse{
			Status: "not_ready",
			Checks: results,
			Error:  "dependency unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, ReadinessResponse{Status: "ready", Checks: results})
}

// Start begins periodic checks. The first check runs immediately.
func (hc *HealthCheck) Start() {
	hc.wg.Add(1)
	go hc.backgroundCheck()
}

// Stop ends periodic checks.
func (hc *HealthCheck) Stop() {
	hc.stopOnce.Do(func() { close(hc.stopCh) })
	hc.wg.Wait()
}

// backgroundCheck performs periodic health checks.
func (hc *HealthCheck) backgroundCheck() {
	defer hc.wg.Done()

	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), hc.checkTimeout)
		hc.runChecks(ctx)
		cancel()

		select {
		case <-hc.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// runChecks pings every dependency and records the outcome.
func (hc *HealthCheck) runChecks(ctx context.Context) (bool, map[string]string) {
	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ready := true
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := hc.checks[name].Ping(ctx); err != nil {
			ready = false
			results[name] = "unhealthy"
			hc.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			continue
		}
		results[name] = "healthy"
	}

	hc.mu.Lock()
	if hc.shuttingDown {
		ready = false
	}
	hc.ready = ready
	hc.results = results
	hc.lastCheck = time.Now()
	hc.mu.Unlock()

	hc.metrics.SetHealthStatus(ready)
	return ready, copyResults(results)
}

// MarkShuttingDown makes readiness fail so load balancers stop routing here
// before the server drains.
func (hc *HealthCheck) MarkShuttingDown() {
	hc.mu.Lock()
	hc.shuttingDown = true
	hc.ready = false
	hc.mu.Unlock()
	hc.metrics.SetHealthStatus(false)
}

// IsReady returns the current readiness status.
func (hc *HealthCheck) IsReady() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.ready
}

// LastCheck returns when dependencies were last checked.
func (hc *HealthCheck) LastCheck() time.Time {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.lastCheck
}

func copyResults(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
