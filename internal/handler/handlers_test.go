package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/TusharKoshti-1/Qr-System/internal/broadcast"
	"github.com/TusharKoshti-1/Qr-System/internal/datastore"
	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/middleware"
	"github.com/TusharKoshti-1/Qr-System/internal/model"
	"github.com/TusharKoshti-1/Qr-System/internal/tenant"
	"github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockRegistry is a mock implementation of Registry.
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Resolve(ctx context.Context, tenantID int64) (string, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Error(1)
}

func (m *MockRegistry) Register(ctx context.Context, req tenant.RegisterRequest) (*model.Tenant, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tenant), args.Error(1)
}

// recordingPublisher keeps published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e broadcast.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) published() []broadcast.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]broadcast.Event(nil), p.events...)
}

// datastores hands the router one sqlmock database per restaurant.
type datastores struct {
	t      *testing.T
	mu     sync.Mutex
	dbs    map[string]*sql.DB
	mocks  map[string]sqlmock.Sqlmock
	opened []string
}

func newDatastores(t *testing.T, names ...string) *datastores {
	d := &datastores{t: t, dbs: make(map[string]*sql.DB), mocks: make(map[string]sqlmock.Sqlmock)}
	for _, name := range names {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		d.dbs[name] = db
		d.mocks[name] = mock
	}
	return d
}

func (d *datastores) open(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	db, ok := d.dbs[cfg.DBName]
	if !ok {
		return nil, fmt.Errorf("unknown database %s", cfg.DBName)
	}
	d.opened = append(d.opened, cfg.DBName)
	return db, nil
}

func (d *datastores) openedNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.opened...)
}

// expect returns the mock for name with the datastore selection expected.
func (d *datastores) expect(name string) sqlmock.Sqlmock {
	m := d.mocks[name]
	m.ExpectExec(regexp.QuoteMeta("USE `" + name + "`")).WillReturnResult(sqlmock.NewResult(0, 0))
	return m
}

type testEnv struct {
	registry   *MockRegistry
	stores     *datastores
	router     *datastore.Router
	publisher  *recordingPublisher
	hub        *broadcast.Hub
	handlers   *Handlers
	httpRouter *mux.Router
}

func newTestEnv(t *testing.T, names ...string) *testEnv {
	t.Helper()

	env := &testEnv{
		registry:  &MockRegistry{},
		stores:    newDatastores(t, names...),
		publisher: &recordingPublisher{},
		hub:       broadcast.NewHub(broadcast.Options{SendTimeout: time.Second}, nil, zap.NewNop()),
	}

	template := mysql.NewConfig()
	template.Net = "tcp"
	template.Addr = "127.0.0.1:3306"
	env.router = datastore.NewRouter(template, datastore.Config{
		MaxOpenConns:   1,
		MaxIdleConns:   1,
		AcquireTimeout: time.Second,
	}, env.stores.open, nil, zap.NewNop())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		env.hub.Close(ctx)
		_ = env.router.Close()
	})
	t.Cleanup(func() {
		for name, m := range env.stores.mocks {
			assert.NoError(t, m.ExpectationsWereMet(), name)
		}
		env.registry.AssertExpectations(t)
	})

	env.handlers = NewHandlers(env.registry, env.router, env.publisher, env.hub,
		apperrors.NewHandler(zap.NewNop()), zap.NewNop(),
		Options{
			WriteTimeout:   2 * time.Second,
			AllowedOrigins: []string{"http://localhost"},
			WebURL:         "https://order.example.com/",
		})

	env.httpRouter = mux.NewRouter()
	h := env.handlers
	r := env.httpRouter
	r.HandleFunc("/api/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/orders", h.ListOrders).Methods(http.MethodGet)
	r.HandleFunc("/api/orders", h.CreateOrder).Methods(http.MethodPost)
	r.HandleFunc("/api/orders/{id}", h.UpdateOrderStatus).Methods(http.MethodPut)
	r.HandleFunc("/api/orders/{id}", h.DeleteOrder).Methods(http.MethodDelete)
	r.HandleFunc("/api/tableorder", h.CreateTableOrder).Methods(http.MethodPost)
	r.HandleFunc("/api/sections", h.CreateSection).Methods(http.MethodPost)
	r.HandleFunc("/api/sections/{id}", h.DeleteSection).Methods(http.MethodDelete)
	r.HandleFunc("/api/menu/{id}", h.UpdateMenuItemPrice).Methods(http.MethodPut)
	r.HandleFunc("/api/events", h.Events).Methods(http.MethodGet)
	r.HandleFunc("/api/generate-qr", h.GenerateQR).Methods(http.MethodGet)

	return env
}

// serve runs req as tenantID, or anonymously when tenantID is 0.
func (env *testEnv) serve(req *http.Request, tenantID int64) *httptest.ResponseRecorder {
	if tenantID > 0 {
		req = req.WithContext(middleware.WithTenantID(req.Context(), tenantID))
	}
	w := httptest.NewRecorder()
	env.httpRouter.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var resp apperrors.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestCreateOrderPublishesOneEventAfterWrite(t *testing.T) {
	env := newTestEnv(t, "admin_a")
	env.registry.On("Resolve", mock.Anything, int64(1)).Return("admin_a", nil)

	m := env.stores.expect("admin_a")
	m.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(5, 1))

	w := env.serve(jsonRequest(http.MethodPost, "/api/orders", map[string]any{
		"customer_name":  "Asha",
		"items":          []model.OrderItem{{Name: "Dosa", Quantity: 2, Price: 60}},
		"total_amount":   120,
		"payment_method": "cash",
	}), 1)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp orderCreatedResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, int64(5), resp.OrderID)

	events := env.publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, broadcast.KindNewOrder, events[0].Kind)
	assert.Equal(t, int64(1), events[0].TenantID)
	order := events[0].Fields["order"].(*model.Order)
	assert.Equal(t, int64(5), order.ID)
	assert.Equal(t, model.OrderStatusPending, order.Status)

	assert.Equal(t, int64(0), env.router.Stats().Outstanding)
}

func TestFailedWriteDoesNotPublish(t *testing.T) {
	tests := []struct {
		name       string
		writeErr   error
		wantStatus int
		wantCode   apperrors.ErrorCode
	}{
		{"constraint violation", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, http.StatusBadRequest, apperrors.ErrorCodeConstraintViolation},
		{"connection lost", mysql.ErrInvalidConn, http.StatusInternalServerError, apperrors.ErrorCodeTransientIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "admin_a")
			env.registry.On("Resolve", mock.Anything, int64(1)).Return("admin_a", nil)

			m := env.stores.expect("admin_a")
			m.ExpectExec("INSERT INTO sections").WillReturnError(tt.writeErr)

			w := env.serve(jsonRequest(http.MethodPost, "/api/sections", map[string]string{"name": "Patio"}), 1)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).ErrorCode)
			assert.Empty(t, env.publisher.published())
			assert.Equal(t, int64(0), env.router.Stats().Outstanding)
		})
	}
}

func TestWriteSurvivesClientCancellation(t *testing.T) {
	env := newTestEnv(t, "admin_a")
	env.registry.On("Resolve", mock.Anything, int64(1)).Return("admin_a", nil)

	m := env.stores.expect("admin_a")
	m.ExpectExec("INSERT INTO sections").WillReturnResult(sqlmock.NewResult(3, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := jsonRequest(http.MethodPost, "/api/sections", map[string]string{"name": "Terrace"}).WithContext(ctx)

	w := env.serve(req, 1)

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, env.publisher.published(), 1)
	assert.Equal(t, broadcast.KindNewSection, env.publisher.published()[0].Kind)
}

func TestTenantsUseTheirOwnDatastore(t *testing.T) {
	env := newTestEnv(t, "admin_a", "admin_b")
	env.registry.On("Resolve", mock.Anything, int64(2)).Return("admin_b", nil)

	m := env.stores.expect("admin_b")
	m.ExpectExec("DELETE FROM sections").WithArgs(int64(9), int64(9)).WillReturnResult(sqlmock.NewResult(0, 1))

	w := env.serve(jsonRequest(http.MethodDelete, "/api/sections/9", nil), 2)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"admin_b"}, env.stores.openedNames())

	events := env.publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, int64(2), events[0].TenantID)
	assert.Equal(t, broadcast.KindDeleteSection, events[0].Kind)
	assert.Equal(t, int64(9), events[0].Fields["id"])
}

func TestDeleteSectionWithTablesIsRejected(t *testing.T) {
	env := newTestEnv(t, "admin_a")
	env.registry.On("Resolve", mock.Anything, int64(1)).Return("admin_a", nil)

	m := env.stores.expect("admin_a")
	m.ExpectExec("DELETE FROM sections").WillReturnResult(sqlmock.NewResult(0, 0))
	m.ExpectQuery("SELECT id, name, created_at, updated_at FROM sections WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
			AddRow(4, "Patio", time.Now(), time.Now()))

	w := env.serve(jsonRequest(http.MethodDelete, "/api/sections/4", nil), 1)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cannot delete section with existing tables", decodeError(t, w).Message)
	assert.Empty(t, env.publisher.published())
}

func TestUnknownTenant(t *testing.T) {
	env := newTestEnv(t, "admin_a")
	env.registry.On("Resolve", mock.Anything, int64(99)).Return("", apperrors.TenantNotFound(99))

	w := env.serve(jsonRequest(http.MethodGet, "/api/orders", nil), 99)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.ErrorCodeTenantNotFound, decodeError(t, w).ErrorCode)
	assert.Empty(t, env.stores.openedNames())
}

func TestAnonymousRequestIsRejected(t *testing.T) {
	env := newTestEnv(t)

	w := env.serve(jsonRequest(http.MethodGet, "/api/orders", nil), 0)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestValidation(t *testing.T) {
	env := newTestEnv(t, "admin_a")

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/sections", bytes.NewBufferString("{"))
		w := env.serve(req, 1)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("non numeric id", func(t *testing.T) {
		w := env.serve(jsonRequest(http.MethodDelete, "/api/orders/abc", nil), 1)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("table order without table", func(t *testing.T) {
		w := env.serve(jsonRequest(http.MethodPost, "/api/tableorder", map[string]any{
			"items":          []model.OrderItem{{Name: "Tea", Quantity: 1, Price: 10}},
			"total_amount":   10,
			"payment_method": "upi",
		}), 1)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("price missing", func(t *testing.T) {
		w := env.serve(jsonRequest(http.MethodPut, "/api/menu/3", map[string]any{}), 1)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	assert.Empty(t, env.publisher.published())
	assert.Empty(t, env.stores.openedNames())
}

func TestDeleteTableOrderPublishesTableVariant(t *testing.T) {
	env := newTestEnv(t, "admin_a")
	env.registry.On("Resolve", mock.Anything, int64(1)).Return("admin_a", nil)

	m := env.stores.expect("admin_a")
	m.ExpectQuery("SELECT (.+) FROM orders WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "customer_name", "phone", "table_number", "items", "total_amount", "payment_method", "status", "created_on",
		}).AddRow(12, nil, nil, "T3", `[{"name":"Tea","quantity":1,"price":10}]`, 10.0, "cash", "Pending", time.Now()))
	m.ExpectExec("UPDATE orders SET is_deleted = 1").WillReturnResult(sqlmock.NewResult(0, 1))

	w := env.serve(jsonRequest(http.MethodDelete, "/api/orders/12", nil), 1)

	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	events := env.publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, broadcast.KindDeleteTableOrder, events[0].Kind)
	assert.Equal(t, "T3", events[0].Fields["table_number"])
}

func TestRegister(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		env := newTestEnv(t)
		req := tenant.RegisterRequest{Username: "owner", Email: "owner@example.com", Password: "pw"}
		env.registry.On("Register", mock.Anything, req).Return(&model.Tenant{ID: 31, Username: "owner"}, nil)

		w := env.serve(jsonRequest(http.MethodPost, "/api/register", req), 0)

		require.Equal(t, http.StatusCreated, w.Code)
		var resp registerResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, int64(31), resp.AdminID)
		assert.Equal(t, "Admin registered successfully", resp.Message)
	})

	t.Run("duplicate email", func(t *testing.T) {
		env := newTestEnv(t)
		env.registry.On("Register", mock.Anything, mock.Anything).
			Return(nil, apperrors.DuplicateTenant("owner@example.com", errors.New("dup")))

		w := env.serve(jsonRequest(http.MethodPost, "/api/register", map[string]string{
			"username": "owner", "email": "owner@example.com", "password": "pw",
		}), 0)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, apperrors.ErrorCodeDuplicateTenant, decodeError(t, w).ErrorCode)
	})
}
