package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func readiness(t *testing.T, hc *HealthCheck) (int, ReadinessResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	hc.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	var resp ReadinessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return w.Code, resp
}

func TestLivenessHandler(t *testing.T) {
	hc := NewHealthCheck(nil, nil, zap.NewNop())

	w := httptest.NewRecorder()
	hc.LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestReadinessHandler(t *testing.T) {
	t.Run("all dependencies reachable", func(t *testing.T) {
		hc := NewHealthCheck(map[string]Pinger{
			"control_plane": PingFunc(func(context.Context) error { return nil }),
		}, nil, zap.NewNop())

		code, resp := readiness(t, hc)

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, "healthy", resp.Checks["control_plane"])
		assert.True(t, hc.IsReady())
	})

	t.Run("failing dependency", func(t *testing.T) {
		hc := NewHealthCheck(map[string]Pinger{
			"control_plane": PingFunc(func(context.Context) error { return nil }),
			"redis":         PingFunc(func(context.Context) error { return errors.New("refused") }),
		}, nil, zap.NewNop())

		code, resp := readiness(t, hc)

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "not_ready", resp.Status)
		assert.Equal(t, "unhealthy", resp.Checks["redis"])
		assert.Equal(t, "healthy", resp.Checks["control_plane"])
	})

	t.Run("recovers after dependency returns", func(t *testing.T) {
		var up atomic.Bool
		hc := NewHealthCheck(map[string]Pinger{
			"control_plane": PingFunc(func(context.Context) error {
				if up.Load() {
					return nil
				}
				return errors.New("down")
			}),
		}, nil, zap.NewNop())

		code, _ := readiness(t, hc)
		assert.Equal(t, http.StatusServiceUnavailable, code)

		up.Store(true)
		code, _ = readiness(t, hc)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("shutting down", func(t *testing.T) {
		hc := NewHealthCheck(map[string]Pinger{
			"control_plane": PingFunc(func(context.Context) error { return nil }),
		}, nil, zap.NewNop())
		readiness(t, hc)

		hc.MarkShuttingDown()
		code, resp := readiness(t, hc)

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "shutting down", resp.Error)
	})
}

func TestBackgroundCheckWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	hc := NewHealthCheck(map[string]Pinger{
		"redis": PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() }),
	}, nil, zap.NewNop())
	hc.checkInterval = 20 * time.Millisecond
	hc.Start()
	defer hc.Stop()

	require.Eventually(t, hc.IsReady, time.Second, 10*time.Millisecond)
	assert.False(t, hc.LastCheck().IsZero())

	mr.Close()
	assert.Eventually(t, func() bool { return !hc.IsReady() }, 2*time.Second, 10*time.Millisecond)
}
