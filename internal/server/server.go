// Package server provides the HTTP server of the POS backend.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/TusharKoshti-1/Qr-System/internal/config"
	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/handler"
	"github.com/TusharKoshti-1/Qr-System/internal/health"
	"github.com/TusharKoshti-1/Qr-System/internal/idempotency"
	"github.com/TusharKoshti-1/Qr-System/internal/metrics"
	"github.com/TusharKoshti-1/Qr-System/internal/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server represents the HTTP server.
type Server struct {
	router       *mux.Router
	handler      http.Handler
	httpServer   *http.Server
	handlers     *handler.Handlers
	healthCheck  *health.HealthCheck
	verifier     middleware.TokenVerifier
	metrics      *metrics.Metrics
	errorHandler *apperrors.Handler
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates a new HTTP server and registers its routes.
func NewServer(
	cfg *config.Config,
	handlers *handler.Handlers,
	healthCheck *health.HealthCheck,
	verifier middleware.TokenVerifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		handlers:     handlers,
		healthCheck:  healthCheck,
		verifier:     verifier,
		metrics:      m,
		errorHandler: apperrors.NewHandler(logger),
		logger:       logger,
		cfg:          cfg,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Metrics label requests by route template, so they run inside the router.
	s.router.Use(metrics.MetricsMiddleware(s.metrics))
	if s.cfg.RateLimiter.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimiter.RequestsPerSecond,
			s.cfg.RateLimiter.BurstSize,
			s.logger,
		)
		s.router.Use(rateLimiter.Limit)
	}

	h := s.handlers
	admin := func(fn http.HandlerFunc) http.Handler {
		return middleware.AdminAuth(s.verifier, s.logger)(fn)
	}
	customer := func(fn http.HandlerFunc) http.Handler {
		return middleware.CustomerTenant(s.logger)(fn)
	}

	// Health check endpoints
	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/register", h.Register).Methods(http.MethodPost)

	// Public customer routes identify the restaurant by query parameter.
	api.Handle("/customer/menu", customer(h.ListMenu)).Methods(http.MethodGet)
	api.Handle("/customer/orders", customer(h.CreateCustomerOrder)).Methods(http.MethodPost)

	// Walk-in orders
	api.Handle("/orders", admin(h.ListOrders)).Methods(http.MethodGet)
	api.Handle("/orders", admin(h.CreateOrder)).Methods(http.MethodPost)
	api.Handle("/orders/{id}", admin(h.UpdateOrderStatus)).Methods(http.MethodPut)
	api.Handle("/orders/{id}/items", admin(h.UpdateOrderItems)).Methods(http.MethodPut)
	api.Handle("/orders/{id}", admin(h.DeleteOrder)).Methods(http.MethodDelete)

	// Table orders
	api.Handle("/tableorder", admin(h.ListOrders)).Methods(http.MethodGet)
	api.Handle("/tableorder", admin(h.CreateTableOrder)).Methods(http.MethodPost)
	api.Handle("/tableorder/update/{id}", admin(h.UpdateOrderItems)).Methods(http.MethodPut)
	api.Handle("/tableorder/{id}", admin(h.UpdateOrderStatus)).Methods(http.MethodPut)
	api.Handle("/tableorder/{id}", admin(h.DeleteOrder)).Methods(http.MethodDelete)

	// Floor plan
	api.Handle("/sections", admin(h.ListSections)).Methods(http.MethodGet)
	api.Handle("/sections", admin(h.CreateSection)).Methods(http.MethodPost)
	api.Handle("/sections/{id}", admin(h.DeleteSection)).Methods(http.MethodDelete)
	api.Handle("/tables", admin(h.ListTables)).Methods(http.MethodGet)
	api.Handle("/tables", admin(h.CreateTable)).Methods(http.MethodPost)
	api.Handle("/tables/{id}", admin(h.UpdateTable)).Methods(http.MethodPut)
	api.Handle("/tables/{id}", admin(h.DeleteTable)).Methods(http.MethodDelete)

	// Menu
	api.Handle("/menu", admin(h.ListMenu)).Methods(http.MethodGet)
	api.Handle("/menu", admin(h.CreateMenuItem)).Methods(http.MethodPost)
	api.Handle("/menu/{id}", admin(h.UpdateMenuItemPrice)).Methods(http.MethodPut)
	api.Handle("/menu/{id}", admin(h.DeleteMenuItem)).Methods(http.MethodDelete)
	api.Handle("/categories", admin(h.ListCategories)).Methods(http.MethodGet)

	// Restaurant profile and staff
	api.Handle("/settings", admin(h.GetSettings)).Methods(http.MethodGet)
	api.Handle("/settings", admin(h.UpdateSettings)).Methods(http.MethodPut)
	api.Handle("/generate-qr", admin(h.GenerateQR)).Methods(http.MethodGet)
	api.Handle("/employees", admin(h.ListEmployees)).Methods(http.MethodGet)
	api.Handle("/employees/{id}", admin(h.DeleteEmployee)).Methods(http.MethodDelete)

	// Reports
	api.Handle("/sales", admin(h.SalesSummary)).Methods(http.MethodGet)
	api.Handle("/sales/top-products", admin(h.TopProducts)).Methods(http.MethodGet)

	// Live feed
	api.Handle("/events", admin(h.Events)).Methods(http.MethodGet)

	// Not found handler
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, apperrors.ErrorCodeInvalidRequest, "endpoint not found", requestID)
	})

	// Method not allowed handler
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, apperrors.ErrorCodeInvalidRequest, "method not allowed", requestID)
	})

	// Outer middleware wraps unmatched requests and CORS preflights as well.
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", idempotency.HeaderName},
		ExposedHeaders:   []string{"X-Request-ID", "Idempotent-Replayed"},
		AllowCredentials: true,
	})
	s.handler = middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
		c.Handler,
	)(s.router)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.Int("port", s.cfg.Server.Port),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server. Hijacked live-feed
// connections are not tracked by the server; the hub closes them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// GetRouter returns the router for testing purposes.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// GetHandler returns the http.Handler for the server, middleware included.
func (s *Server) GetHandler() http.Handler {
	return s.handler
}
