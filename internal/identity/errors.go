package identity

import (
	"errors"
	"fmt"
)

// Sentinel errors. Backends translate their native errors into these at the
// call site and wrap the original with %w so it stays available for logging.
var (
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrTooManyAttempts    = errors.New("identity: too many attempts")
	ErrUserNotFound       = errors.New("identity: user not found")
	ErrUserDisabled       = errors.New("identity: user disabled")
	ErrEmailAlreadyExists = errors.New("identity: email already exists")
	ErrWeakPassword       = errors.New("identity: weak password")
	ErrInvalidEmail       = errors.New("identity: invalid email")
	ErrInvalidToken       = errors.New("identity: invalid or expired token")
	ErrUnavailable        = errors.New("identity: provider unavailable")
)

// providerError keeps the provider's own error behind a sentinel.
type providerError struct {
	kind  error
	cause error
}

func (e *providerError) Error() string {
	if e.cause == nil {
		return e.kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.kind, e.cause)
}

func (e *providerError) Is(target error) bool { return target == e.kind }

func (e *providerError) Unwrap() error { return e.cause }

func wrap(kind, cause error) error {
	return &providerError{kind: kind, cause: cause}
}

// Kind returns the sentinel err maps to, or ErrUnavailable for anything
// that did not come through a backend's translation.
func Kind(err error) error {
	for _, k := range []error{
		ErrInvalidCredentials, ErrTooManyAttempts, ErrUserNotFound, ErrUserDisabled,
		ErrEmailAlreadyExists, ErrWeakPassword, ErrInvalidEmail, ErrInvalidToken, ErrUnavailable,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrUnavailable
}
