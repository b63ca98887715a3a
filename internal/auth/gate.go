package auth

import (
	"context"
	"time"

	"student_portal_backend/internal/identity"
	"student_portal_backend/internal/session"
	"student_portal_backend/internal/user"

	"go.uber.org/zap"
)

// StatusGate is the last step of every sign-in path. It tears down the
// session of a deleted or blocked account before reporting ACCOUNT_BLOCKED.
type StatusGate struct {
	provider  identity.Provider
	blocklist session.Blocklist
	logger    *zap.Logger
}

func NewStatusGate(provider identity.Provider, blocklist session.Blocklist, logger *zap.Logger) *StatusGate {
	return &StatusGate{provider: provider, blocklist: blocklist, logger: logger.Named("StatusGate")}
}

// Check passes when u is nil: records that do not exist yet go through
// profile completion instead.
func (g *StatusGate) Check(ctx context.Context, u *user.User, uid string, jar session.Jar) error {
	if u == nil || !u.Denied() {
		return nil
	}
	g.logger.Warn("Session rejected for denied account",
		zap.String("uid", uid),
		zap.String("status", u.Status))
	teardown(ctx, g.provider, g.blocklist, g.logger, jar, uid, true)
	return NewError(CodeAccountBlocked, nil)
}

// teardown ends a session. The jar is cleared no matter what fails before it.
func teardown(ctx context.Context, provider identity.Provider, blocklist session.Blocklist, logger *zap.Logger, jar session.Jar, uid string, revoke bool) {
	ctx = context.WithoutCancel(ctx)
	if revoke && uid != "" {
		if err := provider.RevokeSession(ctx, uid); err != nil {
			logger.Warn("Failed to revoke identity session", zap.String("uid", uid), zap.Error(err))
		}
	}
	if cookie, ok := jar.Current(); ok {
		if err := blocklist.Add(ctx, cookie, time.Time{}); err != nil {
			logger.Warn("Failed to blocklist session cookie", zap.String("uid", uid), zap.Error(err))
		}
	}
	jar.Clear()
}
