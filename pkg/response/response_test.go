package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/service-checkout/pkg/domain"
)

type codedErr struct{}

func (codedErr) Error() string                { return "code has expired" }
func (codedErr) ErrorCode() string            { return "CODE_EXPIRED" }
func (codedErr) ErrorDetails() map[string]any { return map[string]any{"code": "SPRING"} }
func (codedErr) Is(target error) bool         { return target == domain.ErrValidation }

func TestError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", domain.NewValidationError("bad quantity"), http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"coded validation", codedErr{}, http.StatusUnprocessableEntity, "CODE_EXPIRED"},
		{"not found", domain.NewNotFoundError("Order", "42"), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", domain.NewConflictError("taken"), http.StatusConflict, "CONFLICT"},
		{"coded conflict", &domain.DomainError{Err: domain.ErrConflict, Code: "AUTHORIZATION_PENDING"}, http.StatusConflict, "AUTHORIZATION_PENDING"},
		{"invalid state", fmt.Errorf("wrapped: %w", domain.ErrInvalidState), http.StatusConflict, "INVALID_TRANSITION"},
		{"forbidden", domain.NewForbiddenError("not yours"), http.StatusForbidden, "FORBIDDEN"},
		{"upstream", domain.NewUpstreamError("processor", errors.New("timeout")), http.StatusBadGateway, "UPSTREAM_FAILED"},
		{"unknown", errors.New("pq: connection reset"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			Error(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var env Envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestError_InternalHidesMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("dial tcp 10.0.0.3:5432: connection refused"))

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "internal server error", env.Error.Message)
}

func TestPaginated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Paginated(c, []string{"a"}, 7, 2, 1)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, &Pagination{Page: 2, Limit: 1, Total: 7}, env.Meta)
}
