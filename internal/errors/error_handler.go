package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Status    string    `json:"status"`
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// Handler renders errors as HTTP responses.
type Handler struct {
	logger *zap.Logger
}

// NewHandler returns a Handler logging to logger.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{logger: logger}
}

// HandleError writes the response for err. Errors outside the taxonomy become
// a generic 500 so driver or network text never reaches the client.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := r.Header.Get("X-Request-ID")

	ae, ok := AsAppError(err)
	if !ok {
		h.logger.Error("unclassified error",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
		)
		h.WriteErrorResponse(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error", requestID)
		return
	}

	status := ae.HTTPStatus()
	if status >= http.StatusInternalServerError {
		fields := make([]zap.Field, 0, 5+len(ae.Details))
		fields = append(fields,
			zap.String("error_code", string(ae.Code)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		for k, v := range ae.Details {
			fields = append(fields, zap.Any(k, v))
		}
		h.logger.Error("request failed", fields...)
	}

	h.WriteErrorResponse(w, status, ae.Code, ae.Message, requestID)
}

// WriteErrorResponse writes an error body with the given status. Client
// errors are logged here; server errors are logged by the caller with more
// context.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, code ErrorCode, message, requestID string) {
	if statusCode < http.StatusInternalServerError {
		h.logger.Warn("HTTP error response",
			zap.Int("status_code", statusCode),
			zap.String("error_code", string(code)),
			zap.String("message", message),
			zap.String("request_id", requestID),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Status:    "error",
		ErrorCode: code,
		Message:   message,
		RequestID: requestID,
	}); err != nil {
		h.logger.Debug("failed to write error response", zap.Error(err))
	}
}

// WriteValidationError writes a 400.
func (h *Handler) WriteValidationError(w http.ResponseWriter, message, requestID string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, message, requestID)
}

// WriteUnauthorized writes a 401.
func (h *Handler) WriteUnauthorized(w http.ResponseWriter, message, requestID string) {
	h.WriteErrorResponse(w, http.StatusUnauthorized, ErrorCodeUnauthorized, message, requestID)
}

// WriteRateLimitedError writes a 429.
func (h *Handler) WriteRateLimitedError(w http.ResponseWriter, requestID string) {
	h.WriteErrorResponse(w, http.StatusTooManyRequests, ErrorCodeRateLimited, "rate limit exceeded", requestID)
}
