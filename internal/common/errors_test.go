package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDetails_DoesNotMutateSharedError(t *testing.T) {
	withDetails := ErrBadRequest.WithDetails("boom")

	assert.Equal(t, "boom", withDetails.Details)
	assert.Nil(t, ErrBadRequest.Details)
}

func TestIsAPIError_Wrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", ErrConflict)

	apiErr, ok := IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	_, ok = IsAPIError(errors.New("plain"))
	assert.False(t, ok)
}

func TestFormatValidationErrors(t *testing.T) {
	type payload struct {
		Email    string `validate:"required,email"`
		Password string `validate:"required,min=6"`
	}
	err := validator.New().Struct(payload{Email: "nope", Password: "123"})
	var ve validator.ValidationErrors
	require.True(t, errors.As(err, &ve))

	got := FormatValidationErrors(ve)
	assert.Equal(t, "The email field must be a valid email address.", got["Email"])
	assert.Equal(t, "The password field must be at least 6 characters long.", got["Password"])
}

func TestRespondWithError_HidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithError(c, errors.New("pq: connection refused at 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
}

func TestAPIError_IsMatchesCopies(t *testing.T) {
	err := fmt.Errorf("lookup: %w", ErrNotFound.WithDetails("User not found with this email."))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
}
