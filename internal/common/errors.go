// File: internal/common/errors.go
package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// APIError represents a standard structure for API errors.
type APIError struct {
	StatusCode int         `json:"-"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("APIError: StatusCode=%d, Code=%s, Message=%s", e.StatusCode, e.Code, e.Message)
}

func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Message: message}
}

// Is matches on status and code, so copies made by WithDetails still match
// the package-level error they came from.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode && e.Code == t.Code
}

// WithDetails returns a copy carrying details; the package-level errors stay untouched.
func (e *APIError) WithDetails(details interface{}) *APIError {
	cp := *e
	cp.Details = details
	return &cp
}

var (
	ErrBadRequest          = NewAPIError(http.StatusBadRequest, "BAD_REQUEST", "The request is invalid.")
	ErrUnauthorized        = NewAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "Authentication is required and has failed or has not yet been provided.")
	ErrForbidden           = NewAPIError(http.StatusForbidden, "FORBIDDEN", "You do not have permission to access this resource.")
	ErrNotFound            = NewAPIError(http.StatusNotFound, "NOT_FOUND", "The requested resource could not be found.")
	ErrConflict            = NewAPIError(http.StatusConflict, "CONFLICT", "A conflict occurred with the current state of the resource.")
	ErrUnprocessableEntity = NewAPIError(http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "The request was well-formed but was unable to be followed due to semantic errors.")
	ErrInternalServer      = NewAPIError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An unexpected error occurred on the server.")
)

func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func NewValidationAPIError(details interface{}) *APIError {
	return &APIError{
		StatusCode: http.StatusUnprocessableEntity,
		Code:       "VALIDATION_ERROR",
		Message:    "Input validation failed.",
		Details:    details,
	}
}

// FormatValidationErrors converts validator.ValidationErrors into a map keyed by field name.
func FormatValidationErrors(errs validator.ValidationErrors) map[string]string {
	errorMap := make(map[string]string)
	for _, e := range errs {
		field := e.Field()
		name := strings.ToLower(field)
		var message string
		switch e.Tag() {
		case "required":
			message = fmt.Sprintf("The %s field is required.", name)
		case "email":
			message = fmt.Sprintf("The %s field must be a valid email address.", name)
		case "min":
			message = fmt.Sprintf("The %s field must be at least %s characters long.", name, e.Param())
		case "max":
			message = fmt.Sprintf("The %s field may not be greater than %s characters.", name, e.Param())
		case "oneof":
			message = fmt.Sprintf("The %s field must be one of the following values: %s.", name, e.Param())
		case "url", "http_url":
			message = fmt.Sprintf("The %s field must be a valid URL.", name)
		case "eqfield":
			message = fmt.Sprintf("The %s field must match %s.", name, strings.ToLower(e.Param()))
		default:
			message = fmt.Sprintf("Field validation for '%s' failed on the '%s' tag.", field, e.Tag())
		}
		errorMap[field] = message
	}
	return errorMap
}
