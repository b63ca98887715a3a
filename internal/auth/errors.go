package auth

import (
	"errors"
	"fmt"
	"net/http"

	"student_portal_backend/internal/common"
	"student_portal_backend/internal/identity"
)

// Kind is the category of an auth failure.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindPrecondition Kind = "precondition"
	KindCredential   Kind = "credential"
	KindSync         Kind = "sync"
	KindPolicy       Kind = "policy"
	KindTransport    Kind = "transport"
)

// Code is a reason code from the closed set the API exposes.
type Code string

const (
	CodeOK Code = "OK"

	CodeEmailRequired  Code = "EMAIL_REQUIRED"
	CodeUserNotFound   Code = "USER_NOT_FOUND"
	CodeAccountDeleted Code = "ACCOUNT_DELETED"
	CodeAccountBlocked Code = "ACCOUNT_BLOCKED"

	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeEmailNotVerified   Code = "EMAIL_NOT_VERIFIED"
	CodeTooManyAttempts    Code = "TOO_MANY_ATTEMPTS"
	CodeEmailInUse         Code = "EMAIL_ALREADY_IN_USE"
	CodeWeakPassword       Code = "WEAK_PASSWORD"
	CodeInvalidEmail       Code = "INVALID_EMAIL"
	CodeInvalidToken       Code = "INVALID_TOKEN"

	CodeSyncFailed Code = "SYNC_FAILED"

	CodeNetworkError       Code = "NETWORK_ERROR"
	CodeDBConnectionFailed Code = "DB_CONNECTION_FAILED"
	CodeSessionFailed      Code = "SESSION_FAILED"

	CodeValidationFailed Code = "VALIDATION_FAILED"
)

type reason struct {
	kind    Kind
	status  int
	message string
}

var reasons = map[Code]reason{
	CodeEmailRequired:  {KindPrecondition, http.StatusBadRequest, "Please enter your email address."},
	CodeUserNotFound:   {KindPrecondition, http.StatusNotFound, "No account found with this email."},
	CodeAccountDeleted: {KindPrecondition, http.StatusForbidden, "This account has been deleted."},
	CodeAccountBlocked: {KindPolicy, http.StatusForbidden, "This account has been blocked. Please contact support."},

	CodeInvalidCredentials: {KindCredential, http.StatusUnauthorized, "Incorrect email or password."},
	CodeEmailNotVerified:   {KindCredential, http.StatusForbidden, "Please verify your email before signing in."},
	CodeTooManyAttempts:    {KindCredential, http.StatusTooManyRequests, "Too many attempts. Please try again later."},
	CodeEmailInUse:         {KindCredential, http.StatusConflict, "An account with this email already exists."},
	CodeWeakPassword:       {KindCredential, http.StatusUnprocessableEntity, "Password must be at least 6 characters."},
	CodeInvalidEmail:       {KindCredential, http.StatusUnprocessableEntity, "Please enter a valid email address."},
	CodeInvalidToken:       {KindCredential, http.StatusUnauthorized, "Your session has expired. Please sign in again."},

	CodeSyncFailed: {KindSync, http.StatusBadGateway, "We could not save your account. Please try again."},

	CodeNetworkError:       {KindTransport, http.StatusServiceUnavailable, "Network error. Please try again."},
	CodeDBConnectionFailed: {KindTransport, http.StatusServiceUnavailable, "The service is temporarily unavailable. Please try again."},
	CodeSessionFailed:      {KindTransport, http.StatusBadGateway, "We could not start your session. Please try again."},

	CodeValidationFailed: {KindValidation, http.StatusUnprocessableEntity, "Please correct the highlighted fields."},
}

// Error is the only error type returned by Bridge and Preflight.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	// Fields carries per-field messages for validation failures.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError builds the Error for code; cause is kept for logging only.
func NewError(code Code, cause error) *Error {
	r, ok := reasons[code]
	if !ok {
		panic(fmt.Sprintf("auth: unknown reason code %q", code))
	}
	return &Error{Kind: r.kind, Code: code, Message: r.message, Err: cause}
}

func validationError(fields map[string]string) *Error {
	e := NewError(CodeValidationFailed, nil)
	e.Fields = fields
	return e
}

// CodeOf returns the reason code carried by err, or "" when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// fromIdentity translates a provider failure into a reason code. fallback is
// used for errors that have no credential-specific meaning.
func fromIdentity(err error, fallback Code) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch identity.Kind(err) {
	case identity.ErrInvalidCredentials:
		return NewError(CodeInvalidCredentials, err)
	case identity.ErrTooManyAttempts:
		return NewError(CodeTooManyAttempts, err)
	case identity.ErrUserNotFound:
		return NewError(CodeUserNotFound, err)
	case identity.ErrUserDisabled:
		return NewError(CodeAccountBlocked, err)
	case identity.ErrEmailAlreadyExists:
		return NewError(CodeEmailInUse, err)
	case identity.ErrWeakPassword:
		return NewError(CodeWeakPassword, err)
	case identity.ErrInvalidEmail:
		return NewError(CodeInvalidEmail, err)
	case identity.ErrInvalidToken:
		return NewError(CodeInvalidToken, err)
	default:
		return NewError(fallback, err)
	}
}

// ToAPIError maps err to the response shape used by the rest of the API.
// The cause never reaches the client.
func ToAPIError(err error) *common.APIError {
	var e *Error
	if !errors.As(err, &e) {
		if apiErr, ok := common.IsAPIError(err); ok {
			return apiErr
		}
		return common.ErrInternalServer
	}
	apiErr := common.NewAPIError(reasons[e.Code].status, string(e.Code), e.Message)
	if len(e.Fields) > 0 {
		apiErr.Details = e.Fields
	}
	return apiErr
}
