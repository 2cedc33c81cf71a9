package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Status(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		status int
	}{
		{"bad request", BadRequest("x"), http.StatusBadRequest},
		{"unauthorized", Unauthorized("x"), http.StatusUnauthorized},
		{"forbidden", Forbidden("x"), http.StatusForbidden},
		{"not found", NotFound("x"), http.StatusNotFound},
		{"conflict", Conflict("x"), http.StatusConflict},
		{"too many requests", TooManyRequests("x", 5), http.StatusTooManyRequests},
		{"internal", Internal("x", nil), http.StatusInternalServerError},
		{"not implemented", NotImplemented("x"), http.StatusNotImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status())
		})
	}
}

func TestError_Wrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("failed to create token", cause)

	assert.Equal(t, "failed to create token: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("handler: %w", err)
	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindInternal, appErr.Kind)
	assert.True(t, Is(wrapped, KindInternal))
	assert.False(t, Is(wrapped, KindNotFound))
}

func TestAs_PlainError(t *testing.T) {
	appErr, ok := As(errors.New("plain"))

	assert.False(t, ok)
	assert.Nil(t, appErr)
}

func TestTooManyRequests_RetryAfter(t *testing.T) {
	err := TooManyRequests("slow down", 42)

	assert.Equal(t, 42, err.RetryAfter)
	assert.Equal(t, "slow down", err.Error())
}
