package apperror

import (
	"fmt"
	"net/http"
	"strings"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Endpoint Configuration (CFG) ----

func ErrInvalidURL(url string) *AppError {
	return New("CFG_001", fmt.Sprintf("Invalid endpoint URL: %s", url), http.StatusBadRequest)
}

func ErrInvalidEventTypes(invalid []string) *AppError {
	return New("CFG_002", fmt.Sprintf("Unknown event types: %s", strings.Join(invalid, ", ")), http.StatusBadRequest)
}

func ErrEndpointNotFound() *AppError {
	return New("CFG_003", "Webhook endpoint not found", http.StatusNotFound)
}

func ErrInvalidAuthConfig(reason string) *AppError {
	return New("CFG_004", fmt.Sprintf("Invalid auth configuration: %s", reason), http.StatusBadRequest)
}

// ---- Delivery (DLV) ----

func ErrDeliveryNotFound() *AppError {
	return New("DLV_001", "Delivery attempt not found", http.StatusNotFound)
}

func ErrDeliveryNotRetryable() *AppError {
	return New("DLV_002", "Delivery attempt is not in a retryable state", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrClaimStoreError(err error) *AppError {
	return Wrap("SYS_002", "Claim store failure", http.StatusServiceUnavailable, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a generic request-validation error.
func Validation(message string) *AppError {
	return New("CFG_000", message, http.StatusBadRequest)
}
