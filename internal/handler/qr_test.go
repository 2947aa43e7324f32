package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGenerateQRReturnsPNGDataURL(t *testing.T) {
	env := newTestEnv(t)
	env.registry.On("Resolve", mock.Anything, int64(12)).Return("admin_12", nil)

	w := env.serve(httptest.NewRequest(http.MethodGet, "/api/generate-qr", nil), 12)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp qrResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(resp.QRImage, prefix))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(resp.QRImage, prefix))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, defaultQRSize, img.Bounds().Dx())
	assert.Equal(t, defaultQRSize, img.Bounds().Dy())
}

func TestOrderingURLPointsAtRestaurant(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, "https://order.example.com/welcome?restaurant_id=12", env.handlers.orderingURL(12))
}

func TestGenerateQRForUnknownRestaurant(t *testing.T) {
	env := newTestEnv(t)
	env.registry.On("Resolve", mock.Anything, int64(5)).Return("", apperrors.TenantNotFound(5))

	w := env.serve(httptest.NewRequest(http.MethodGet, "/api/generate-qr", nil), 5)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.ErrorCodeTenantNotFound, decodeError(t, w).ErrorCode)
}

func TestGenerateQRRequiresRestaurant(t *testing.T) {
	env := newTestEnv(t)

	w := env.serve(httptest.NewRequest(http.MethodGet, "/api/generate-qr", nil), 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
