package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/idempotency"
	"github.com/TusharKoshti-1/Qr-System/internal/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func withReplays(t *testing.T, env *testEnv) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	env.handlers.opts.Replays = idempotency.NewStore(client, idempotency.Options{TTL: time.Minute}, nil, zap.NewNop())
	env.httpRouter.HandleFunc("/api/customer/orders", env.handlers.CreateCustomerOrder).Methods(http.MethodPost)
	return mr
}

func customerOrder(key string) *http.Request {
	req := jsonRequest(http.MethodPost, "/api/customer/orders", map[string]any{
		"customer_name":  "Ravi",
		"table_number":   "T4",
		"items":          []model.OrderItem{{Name: "Idli", Quantity: 3, Price: 40}},
		"total_amount":   120,
		"payment_method": "upi",
	})
	if key != "" {
		req.Header.Set(idempotency.HeaderName, key)
	}
	return req
}

func TestRetriedCustomerOrderIsReplayed(t *testing.T) {
	env := newTestEnv(t, "admin_a")
	withReplays(t, env)
	env.registry.On("Resolve", mock.Anything, int64(1)).Return("admin_a", nil).Once()

	m := env.stores.expect("admin_a")
	m.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(9, 1))

	first := env.serve(customerOrder("tap-1"), 1)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := env.serve(customerOrder("tap-1"), 1)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))

	var resp orderCreatedResponse
	require.NoError(t, json.NewDecoder(second.Body).Decode(&resp))
	assert.Equal(t, int64(9), resp.OrderID)
	assert.Equal(t, "Table order added successfully", resp.Message)

	assert.Len(t, env.publisher.published(), 1)
}

func TestReplayIsScopedToRestaurant(t *testing.T) {
	env := newTestEnv(t, "admin_a", "admin_b")
	withReplays(t, env)
	env.registry.On("Resolve", mock.Anything, int64(1)).Return("admin_a", nil).Once()
	env.registry.On("Resolve", mock.Anything, int64(2)).Return("admin_b", nil).Once()

	env.stores.expect("admin_a").ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(1, 1))
	env.stores.expect("admin_b").ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(1, 1))

	assert.Equal(t, http.StatusCreated, env.serve(customerOrder("same"), 1).Code)
	w := env.serve(customerOrder("same"), 2)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get("Idempotent-Replayed"))
	assert.Len(t, env.publisher.published(), 2)
}

func TestFailedCreateIsNotRemembered(t *testing.T) {
	env := newTestEnv(t, "admin_a")
	withReplays(t, env)
	env.registry.On("Resolve", mock.Anything, int64(1)).Return("admin_a", nil).Twice()

	m := env.stores.expect("admin_a")
	m.ExpectExec("INSERT INTO orders").WillReturnError(assert.AnError)
	env.stores.expect("admin_a").ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(4, 1))

	assert.Equal(t, http.StatusInternalServerError, env.serve(customerOrder("retry"), 1).Code)

	w := env.serve(customerOrder("retry"), 1)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get("Idempotent-Replayed"))
}

func TestUnavailableReplayCacheDoesNotBlockOrders(t *testing.T) {
	env := newTestEnv(t, "admin_a")
	mr := withReplays(t, env)
	mr.Close()
	env.registry.On("Resolve", mock.Anything, int64(1)).Return("admin_a", nil)

	env.stores.expect("admin_a").ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(2, 1))

	w := env.serve(customerOrder("k"), 1)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, env.publisher.published(), 1)
}

func TestOversizedIdempotencyKey(t *testing.T) {
	env := newTestEnv(t, "admin_a")
	withReplays(t, env)

	w := env.serve(customerOrder(strings.Repeat("k", idempotency.MaxKeyLength+1)), 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ErrorCodeInvalidRequest, decodeError(t, w).ErrorCode)
	assert.Empty(t, env.publisher.published())
}
