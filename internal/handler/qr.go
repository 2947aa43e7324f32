package handler

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/TusharKoshti-1/Qr-System/internal/middleware"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const defaultQRSize = 256

type qrResponse struct {
	QRImage string `json:"qrImage"`
}

// orderingURL is the customer ordering page for a restaurant.
func (h *Handlers) orderingURL(tenantID int64) string {
	q := url.Values{"restaurant_id": {strconv.FormatInt(tenantID, 10)}}
	return strings.TrimRight(h.opts.WebURL, "/") + "/welcome?" + q.Encode()
}

// GenerateQR handles GET /api/generate-qr. The code links customers to the
// restaurant's ordering page and is returned as a PNG data URL.
func (h *Handlers) GenerateQR(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantIDFromContext(r.Context())
	if !ok {
		h.errorHandler.WriteUnauthorized(w, "restaurant not identified", r.Header.Get("X-Request-ID"))
		return
	}

	if _, err := h.registry.Resolve(r.Context(), tenantID); err != nil {
		h.fail(w, r, tenantID, err)
		return
	}

	png, err := qrcode.Encode(h.orderingURL(tenantID), qrcode.Medium, h.opts.QRSize)
	if err != nil {
		h.logger.Error("QR generation failed", zap.Int64("tenant_id", tenantID), zap.Error(err))
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, qrResponse{
		QRImage: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}
