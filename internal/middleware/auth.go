// File: internal/middleware/auth.go
package middleware

import (
	"context"

	"student_portal_backend/internal/auth"
	"student_portal_backend/internal/common"
	"student_portal_backend/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionResolver resolves the session cookie of a request to a session.
// *auth.Bridge satisfies it.
type SessionResolver interface {
	CurrentSession(ctx context.Context, jar session.Jar) (*auth.Session, error)
}

// SessionAuth creates a Gin middleware that admits only requests carrying a
// valid, non-revoked session cookie whose account passes the status gate.
// Rejected requests get the auth reason code; the cookie is cleared when the
// session cannot be used again.
func SessionAuth(resolver SessionResolver, opts session.CookieOptions, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("SessionAuth")
	return func(c *gin.Context) {
		jar := session.NewCookieJar(c, opts)
		s, err := resolver.CurrentSession(c.Request.Context(), jar)
		if err != nil {
			logger.Debug("Session rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("code", string(auth.CodeOf(err))),
				zap.Error(err))
			common.RespondWithError(c, auth.ToAPIError(err))
			return
		}

		c.Set(common.IdentityUIDKey, s.UID)
		c.Set(common.IdentityEmailKey, s.Email)
		c.Set(common.IdentityEmailVerifiedKey, s.EmailVerified)
		c.Set(common.VerificationPendingKey, s.VerificationPending)
		if raw, ok := jar.Current(); ok {
			c.Set(common.SessionCookieKey, raw)
		}

		logger.Debug("Session accepted", zap.String("uid", s.UID), zap.Bool("demo", s.Demo))
		c.Next()
	}
}

// RequireVerifiedEmail rejects password sessions whose email was not
// verified when the cookie was minted. Must run after SessionAuth.
func RequireVerifiedEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		if common.IsVerificationPending(c) {
			common.RespondWithError(c, auth.ToAPIError(auth.NewError(auth.CodeEmailNotVerified, nil)))
			return
		}
		c.Next()
	}
}
