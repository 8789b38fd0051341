package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrNotFound.StatusCode())
	assert.Equal(t, http.StatusUnprocessableEntity, ErrValidation.StatusCode())
	assert.Equal(t, http.StatusConflict, ErrInvalidState.StatusCode())
	assert.Equal(t, http.StatusBadGateway, ErrPaymentFailed.StatusCode())
	assert.Equal(t, http.StatusTooManyRequests, ErrRateLimited.StatusCode())

	// Unknown codes fall back to 500.
	assert.Equal(t, http.StatusInternalServerError, ErrorCode("BOGUS").StatusCode())
}

func TestConstructors(t *testing.T) {
	err := NotFound("media")
	assert.Equal(t, ErrNotFound, err.Code)
	assert.Equal(t, "media not found", err.Message)
	assert.Equal(t, http.StatusNotFound, err.Status)

	err = ValidationError("email", "invalid format")
	assert.Equal(t, ErrValidation, err.Code)
	assert.Equal(t, "email", err.Field)
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)

	err = InvalidState("payout already decided")
	assert.Equal(t, ErrInvalidState, err.Code)
	assert.Equal(t, http.StatusConflict, err.Status)

	err = PaymentFailed("card declined")
	assert.Equal(t, ErrPaymentFailed, err.Code)
	assert.Equal(t, http.StatusBadGateway, err.Status)
}

func TestErrorString(t *testing.T) {
	err := ValidationError("price_cents", "must be non-negative")
	assert.Contains(t, err.Error(), "VALIDATION_ERROR")
	assert.Contains(t, err.Error(), "price_cents")

	plain := Unauthorized("token expired")
	assert.Equal(t, "UNAUTHORIZED: token expired", plain.Error())
}

func TestWithDetails(t *testing.T) {
	err := InternalError("database error").WithDetails("connection refused")
	assert.Equal(t, "connection refused", err.Details)
}
