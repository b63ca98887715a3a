package auth

import (
	"context"
	"errors"

	"student_portal_backend/internal/common"
	"student_portal_backend/internal/user"

	"go.uber.org/zap"
)

// PreflightResult is the outcome of a pre-authentication status lookup.
type PreflightResult struct {
	Allowed bool   `json:"allowed"`
	Code    Code   `json:"code"`
	Role    string `json:"role,omitempty"`
}

// Preflight looks an account up by email before any password is checked, so
// that missing, deleted and blocked accounts fail with a precise reason.
type Preflight struct {
	users  UserStore
	logger *zap.Logger
}

func NewPreflight(users UserStore, logger *zap.Logger) *Preflight {
	return &Preflight{users: users, logger: logger.Named("Preflight")}
}

// Check never mutates state. The only error it returns is
// DB_CONNECTION_FAILED; every account outcome is in the result.
func (p *Preflight) Check(ctx context.Context, email string) (PreflightResult, error) {
	email = user.NormalizeEmail(email)
	if email == "" {
		return PreflightResult{Code: CodeEmailRequired}, nil
	}

	u, err := p.users.FindByEmail(ctx, email)
	if errors.Is(err, common.ErrNotFound) {
		return PreflightResult{Code: CodeUserNotFound}, nil
	}
	if err != nil {
		p.logger.Error("User record lookup failed", zap.Error(err))
		return PreflightResult{}, NewError(CodeDBConnectionFailed, err)
	}

	switch {
	case u.IsDeleted():
		return PreflightResult{Code: CodeAccountDeleted}, nil
	case u.IsBlocked():
		return PreflightResult{Code: CodeAccountBlocked}, nil
	}
	return PreflightResult{Allowed: true, Code: CodeOK, Role: u.Role}, nil
}
