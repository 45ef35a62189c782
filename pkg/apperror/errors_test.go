package apperror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	e := New("CFG_001", "Invalid endpoint URL: not-a-url", http.StatusBadRequest)
	assert.Equal(t, "[CFG_001] Invalid endpoint URL: not-a-url", e.Error())
}

func TestAppError_ErrorWithWrapped(t *testing.T) {
	inner := errors.New("connection refused")
	e := Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, inner)
	assert.Contains(t, e.Error(), "SYS_001")
	assert.Contains(t, e.Error(), "connection refused")
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	e := ErrDatabaseError(inner)
	assert.True(t, errors.Is(e, inner))
}

func TestErrInvalidEventTypes_NamesInvalidEntries(t *testing.T) {
	e := ErrInvalidEventTypes([]string{"booking_deleted", "foo"})
	assert.Equal(t, "CFG_002", e.Code)
	assert.Contains(t, e.Message, "booking_deleted")
	assert.Contains(t, e.Message, "foo")
	assert.Equal(t, http.StatusBadRequest, e.HTTPStatus)
}

func TestErrorStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ErrInvalidURL("x").HTTPStatus)
	assert.Equal(t, http.StatusNotFound, ErrEndpointNotFound().HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, ErrInvalidAuthConfig("missing token").HTTPStatus)
	assert.Equal(t, http.StatusNotFound, ErrDeliveryNotFound().HTTPStatus)
	assert.Equal(t, http.StatusConflict, ErrDeliveryNotRetryable().HTTPStatus)
	assert.Equal(t, http.StatusUnauthorized, ErrInvalidToken().HTTPStatus)
	assert.Equal(t, http.StatusServiceUnavailable, ErrClaimStoreError(errors.New("x")).HTTPStatus)
}
