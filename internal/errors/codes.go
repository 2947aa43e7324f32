// Package errors defines the error taxonomy shared by the registry, the
// connection router, the data access layer and the HTTP handlers, and maps
// it onto HTTP responses.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	// Request errors
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrorCodeRateLimited    ErrorCode = "RATE_LIMITED"

	// Tenant errors
	ErrorCodeTenantNotFound  ErrorCode = "TENANT_NOT_FOUND"
	ErrorCodeDuplicateTenant ErrorCode = "DUPLICATE_TENANT"

	// Datastore errors
	ErrorCodePoolExhausted        ErrorCode = "POOL_EXHAUSTED"
	ErrorCodeDatastoreUnavailable ErrorCode = "DATASTORE_UNAVAILABLE"
	ErrorCodeConstraintViolation  ErrorCode = "CONSTRAINT_VIOLATION"
	ErrorCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrorCodeTransientIO          ErrorCode = "TRANSIENT_IO_ERROR"

	// Broadcast errors never leave the broadcaster.
	ErrorCodeDeliveryFailure ErrorCode = "DELIVERY_FAILURE"

	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// AppError is a structured error carrying a code, a client-safe message and
// diagnostic details.
type AppError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	e.Details[key] = value
	return e
}

// HTTPStatus maps the error code to the status returned to clients.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrorCodeInvalidRequest, ErrorCodeConstraintViolation:
		return http.StatusBadRequest
	case ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrorCodeTenantNotFound, ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeDuplicateTenant:
		return http.StatusConflict
	case ErrorCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrorCodePoolExhausted, ErrorCodeDatastoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewAppError creates a new AppError.
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

// Convenience constructors for common errors

func InvalidArgument(message string) *AppError {
	return NewAppError(ErrorCodeInvalidRequest, message, nil)
}

func Unauthorized(message string, cause error) *AppError {
	return NewAppError(ErrorCodeUnauthorized, message, cause)
}

func TenantNotFound(tenantID int64) *AppError {
	return NewAppError(ErrorCodeTenantNotFound, fmt.Sprintf("restaurant %d not found", tenantID), nil).
		WithDetail("tenant_id", tenantID)
}

func DuplicateTenant(email string, cause error) *AppError {
	return NewAppError(ErrorCodeDuplicateTenant, "an account with this email already exists", cause).
		WithDetail("email", email)
}

func PoolExhausted(datastore string, cause error) *AppError {
	return NewAppError(ErrorCodePoolExhausted, "no datastore connection available", cause).
		WithDetail("datastore", datastore)
}

func DatastoreUnavailable(datastore string, cause error) *AppError {
	return NewAppError(ErrorCodeDatastoreUnavailable, "restaurant datastore unavailable", cause).
		WithDetail("datastore", datastore)
}

func ConstraintViolation(message string, cause error) *AppError {
	return NewAppError(ErrorCodeConstraintViolation, message, cause)
}

func NotFound(resource string) *AppError {
	return NewAppError(ErrorCodeNotFound, resource+" not found", nil).
		WithDetail("resource", resource)
}

func TransientIO(op string, cause error) *AppError {
	return NewAppError(ErrorCodeTransientIO, "datastore operation failed", cause).
		WithDetail("operation", op)
}

func DeliveryFailure(cause error) *AppError {
	return NewAppError(ErrorCodeDeliveryFailure, "event delivery failed", cause)
}

func InternalError(message string, cause error) *AppError {
	return NewAppError(ErrorCodeInternalError, message, cause)
}

// AsAppError extracts the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// CodeOf extracts the error code from an error chain.
func CodeOf(err error) ErrorCode {
	if ae, ok := AsAppError(err); ok {
		return ae.Code
	}
	return ErrorCodeInternalError
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
