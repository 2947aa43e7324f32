package handler

import (
	"context"
	"net/http"

	"github.com/TusharKoshti-1/Qr-System/internal/tenant"
	"go.uber.org/zap"
)

type registerResponse struct {
	Message string `json:"message"`
	AdminID int64  `json:"admin_id"`
}

// Register handles POST /api/register. It creates the restaurant account and
// provisions its datastore.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req tenant.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.opts.WriteTimeout)
	defer cancel()

	t, err := h.registry.Register(ctx, req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.Info("Restaurant registered",
		zap.Int64("tenant_id", t.ID),
		zap.String("request_id", r.Header.Get("X-Request-ID")))
	h.writeJSONResponse(w, http.StatusCreated, registerResponse{
		Message: "Admin registered successfully",
		AdminID: t.ID,
	})
}
