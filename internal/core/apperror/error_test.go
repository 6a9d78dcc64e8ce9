package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StatusFromCode(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NewValidation("bad"), http.StatusBadRequest},
		{NewNotFound("order", "42"), http.StatusNotFound},
		{NewLocked("salary:1"), http.StatusConflict},
		{NewOrderClosed("42", "DELIVERED"), http.StatusUnprocessableEntity},
		{NewInsufficientStock("m", "2.0000", "1.0000"), http.StatusUnprocessableEntity},
		{NewBusinessRule(CodeStagesNotDone, "not yet"), http.StatusUnprocessableEntity},
		{NewInternal(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus)
		})
	}
}

func TestAsAppError_ThroughWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := fmt.Errorf("complete stage: %w", NewInternal(cause))

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeInternal, appErr.Code)
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, HasCode(wrapped, CodeInternal))
	assert.False(t, IsNotFound(wrapped))

	_, ok = AsAppError(cause)
	assert.False(t, ok)
}

func TestNotFoundDetails(t *testing.T) {
	err := NewNotFound("material", 7)
	assert.Equal(t, "material not found", err.Message)
	assert.Equal(t, map[string]any{"entity": "material", "id": 7}, err.Details)
}
