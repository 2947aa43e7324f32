// Package handler provides HTTP request handlers for the POS backend.
//
// Every state-changing handler follows the same sequence: resolve the
// restaurant, run the write on a scoped datastore handle, publish exactly one
// event once the write has succeeded, then respond.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/TusharKoshti-1/Qr-System/internal/broadcast"
	"github.com/TusharKoshti-1/Qr-System/internal/datastore"
	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/idempotency"
	"github.com/TusharKoshti-1/Qr-System/internal/middleware"
	"github.com/TusharKoshti-1/Qr-System/internal/model"
	"github.com/TusharKoshti-1/Qr-System/internal/tenant"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Registry resolves and registers restaurants.
type Registry interface {
	Resolve(ctx context.Context, tenantID int64) (string, error)
	Register(ctx context.Context, req tenant.RegisterRequest) (*model.Tenant, error)
}

// DatastoreRouter hands out scoped connections to a restaurant's datastore.
type DatastoreRouter interface {
	WithHandle(ctx context.Context, datastore string, fn func(h *datastore.Handle) error) error
}

// Subscriptions registers live dashboard connections.
type Subscriptions interface {
	Subscribe(tenantID int64, conn broadcast.Conn) (*broadcast.Subscriber, error)
}

// ResponseCache remembers create responses by idempotency key.
type ResponseCache interface {
	Key(tenantID int64, route, clientKey string) string
	Get(ctx context.Context, key string) (*idempotency.Response, error)
	Set(ctx context.Context, key string, resp *idempotency.Response) error
}

// Options configures the handlers.
type Options struct {
	// WriteTimeout bounds a state-changing operation. Writes do not observe
	// client cancellation.
	WriteTimeout time.Duration
	// AllowedOrigins lists browser origins accepted by the live event feed.
	AllowedOrigins []string
	// Replays, when set, answers a repeated create carrying the same
	// Idempotency-Key with the first response.
	Replays ResponseCache
	// WebURL is the customer ordering site encoded into table QR codes.
	WebURL string
	// QRSize is the QR code edge length in pixels.
	QRSize int
}

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	registry     Registry
	router       DatastoreRouter
	publisher    broadcast.Publisher
	subs         Subscriptions
	errorHandler *apperrors.Handler
	logger       *zap.Logger
	opts         Options
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	registry Registry,
	router DatastoreRouter,
	publisher broadcast.Publisher,
	subs Subscriptions,
	errorHandler *apperrors.Handler,
	logger *zap.Logger,
	opts Options,
) *Handlers {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.QRSize <= 0 {
		opts.QRSize = defaultQRSize
	}
	return &Handlers{
		registry:     registry,
		router:       router,
		publisher:    publisher,
		subs:         subs,
		errorHandler: errorHandler,
		logger:       logger,
		opts:         opts,
	}
}

// readFunc produces the response body of a read.
type readFunc func(ctx context.Context, h *datastore.Handle) (any, error)

// writeFunc performs a write and returns the response body and the event
// describing the change.
type writeFunc func(ctx context.Context, tenantID int64, h *datastore.Handle) (any, broadcast.Event, error)

// read runs fn against the caller's datastore and responds with its result.
func (h *Handlers) read(w http.ResponseWriter, r *http.Request, fn readFunc) {
	tenantID, ok := middleware.TenantIDFromContext(r.Context())
	if !ok {
		h.errorHandler.WriteUnauthorized(w, "restaurant not identified", r.Header.Get("X-Request-ID"))
		return
	}

	ctx := r.Context()
	name, err := h.registry.Resolve(ctx, tenantID)
	if err != nil {
		h.fail(w, r, tenantID, err)
		return
	}

	var body any
	err = h.router.WithHandle(ctx, name, func(dh *datastore.Handle) error {
		var err error
		body, err = fn(ctx, dh)
		return err
	})
	if err != nil {
		h.fail(w, r, tenantID, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, body)
}

// write runs fn against the caller's datastore on a context that outlives the
// client connection. The event is published only after fn succeeded and the
// handle was released.
func (h *Handlers) write(w http.ResponseWriter, r *http.Request, status int, fn writeFunc) {
	tenantID, ok := middleware.TenantIDFromContext(r.Context())
	if !ok {
		h.errorHandler.WriteUnauthorized(w, "restaurant not identified", r.Header.Get("X-Request-ID"))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.opts.WriteTimeout)
	defer cancel()

	var replayKey string
	if status == http.StatusCreated && h.opts.Replays != nil {
		clientKey := r.Header.Get(idempotency.HeaderName)
		if len(clientKey) > idempotency.MaxKeyLength {
			h.errorHandler.HandleError(w, r, apperrors.InvalidArgument("idempotency key is too long"))
			return
		}
		if clientKey != "" {
			replayKey = h.opts.Replays.Key(tenantID, r.Method+" "+r.URL.Path, clientKey)
			if h.replay(ctx, w, replayKey) {
				return
			}
		}
	}

	name, err := h.registry.Resolve(ctx, tenantID)
	if err != nil {
		h.fail(w, r, tenantID, err)
		return
	}

	var (
		body  any
		event broadcast.Event
	)
	err = h.router.WithHandle(ctx, name, func(dh *datastore.Handle) error {
		var err error
		body, event, err = fn(ctx, tenantID, dh)
		return err
	})
	if err != nil {
		h.fail(w, r, tenantID, err)
		return
	}

	h.publisher.Publish(ctx, event)

	if replayKey != "" {
		h.remember(ctx, replayKey, status, body)
	}

	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	h.writeJSONResponse(w, status, body)
}

// replay writes the remembered response for key, if any. Cache errors are
// logged and the request proceeds as a first attempt.
func (h *Handlers) replay(ctx context.Context, w http.ResponseWriter, key string) bool {
	resp, err := h.opts.Replays.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, idempotency.ErrNotFound) {
			h.logger.Warn("idempotency lookup failed", zap.Error(err))
		}
		return false
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(resp.Status)
	if _, err := w.Write(resp.Body); err != nil {
		h.logger.Error("failed to write replayed response", zap.Error(err))
	}
	return true
}

func (h *Handlers) remember(ctx context.Context, key string, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		h.logger.Error("failed to encode idempotent response", zap.Error(err))
		return
	}
	if err := h.opts.Replays.Set(ctx, key, &idempotency.Response{Status: status, Body: data}); err != nil {
		h.logger.Warn("failed to store idempotent response", zap.Error(err))
	}
}

// fail attaches the tenant to err and writes the error response.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, tenantID int64, err error) {
	if ae, ok := apperrors.AsAppError(err); ok {
		ae.WithDetail("tenant_id", tenantID)
	}
	h.errorHandler.HandleError(w, r, err)
}

// writeJSONResponse writes a JSON response.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidArgument("request body is required")
		}
		return apperrors.InvalidArgument("invalid request body")
	}
	return nil
}

// pathID parses the {id} path variable.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidArgument("id must be a positive integer")
	}
	return id, nil
}

// messageResponse is the body of most successful writes.
type messageResponse struct {
	Message string `json:"message"`
}
