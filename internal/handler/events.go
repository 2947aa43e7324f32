package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/middleware"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

// wsConn adapts a websocket connection to broadcast.Conn. Events are sent as
// text frames.
type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Send(msg []byte, timeout time.Duration) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return websocket.Message.Send(c.ws, string(msg))
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

// Events handles GET /api/events, the live feed of a restaurant's changes.
// The connection receives every event published for the caller's restaurant
// until either side closes it.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantIDFromContext(r.Context())
	if !ok {
		h.errorHandler.WriteUnauthorized(w, "restaurant not identified", r.Header.Get("X-Request-ID"))
		return
	}

	// Reject unknown restaurants before upgrading.
	if _, err := h.registry.Resolve(r.Context(), tenantID); err != nil {
		h.fail(w, r, tenantID, err)
		return
	}

	srv := websocket.Server{
		Handshake: h.checkOrigin,
		Handler: func(ws *websocket.Conn) {
			h.serveEvents(tenantID, ws)
		},
	}
	srv.ServeHTTP(w, r)
}

func (h *Handlers) serveEvents(tenantID int64, ws *websocket.Conn) {
	// The server's read and write timeouts stay on hijacked connections.
	if err := ws.SetDeadline(time.Time{}); err != nil {
		h.logger.Warn("Closing live feed", zap.Int64("tenant_id", tenantID), zap.Error(err))
		ws.Close()
		return
	}

	sub, err := h.subs.Subscribe(tenantID, &wsConn{ws: ws})
	if err != nil {
		h.logger.Warn("Rejecting live feed", zap.Int64("tenant_id", tenantID), zap.Error(err))
		ws.Close()
		return
	}
	defer sub.Close()

	h.logger.Debug("Live feed opened", zap.Int64("tenant_id", tenantID))

	// Incoming frames are ignored; the read fails once the peer goes away or
	// the subscription closes the connection.
	var discard string
	for {
		if err := websocket.Message.Receive(ws, &discard); err != nil {
			h.logger.Debug("Live feed closed", zap.Int64("tenant_id", tenantID), zap.Error(err))
			return
		}
	}
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients) and browser requests from an allowed origin.
func (h *Handlers) checkOrigin(config *websocket.Config, r *http.Request) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return apperrors.InvalidArgument("invalid origin")
	}
	config.Origin = u

	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return nil
		}
	}
	return fmt.Errorf("origin %q not allowed", origin)
}
