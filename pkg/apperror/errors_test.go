package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("GAME_002", "Not enough chips", http.StatusPaymentRequired),
			expected: "[GAME_002] Not enough chips",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("GAME_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestAuthErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidCredentials", ErrInvalidCredentials(), "AUTH_001", 401},
		{"DuplicateUsername", ErrDuplicateUsername(), "AUTH_002", 409},
		{"InvalidToken", ErrInvalidToken(), "AUTH_003", 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestGameErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidInput", InvalidInput("display name is required"), "GAME_001", 400},
		{"InsufficientBalance", ErrInsufficientBalance(), "GAME_002", 402},
		{"RoundInProgress", ErrRoundInProgress(), "GAME_003", 409},
		{"SideNotSelected", ErrSideNotSelected(), "GAME_004", 400},
		{"NotFound", ErrNotFound("Account"), "GAME_005", 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	internal := InternalError(inner)
	assert.Equal(t, "SYS_001", internal.Code)
	assert.True(t, errors.Is(internal, inner))
}

func TestRateLimitError(t *testing.T) {
	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("commit: %w", ErrInsufficientBalance())

	assert.True(t, HasCode(ErrInsufficientBalance(), "GAME_002"))
	assert.True(t, HasCode(wrapped, "GAME_002"))
	assert.False(t, HasCode(wrapped, "GAME_003"))
	assert.False(t, HasCode(errors.New("plain"), "GAME_002"))
}

func TestPayloadTooLarge(t *testing.T) {
	err := ErrPayloadTooLarge()
	assert.Equal(t, "REQ_001", err.Code)
	assert.Equal(t, 413, err.HTTPStatus)
}

func TestShuttingDown(t *testing.T) {
	err := ErrShuttingDown()
	assert.Equal(t, "SYS_002", err.Code)
	assert.Equal(t, 503, err.HTTPStatus)
}
