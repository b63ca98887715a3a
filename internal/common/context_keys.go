// File: internal/common/context_keys.go
package common

const (
	// IdentityUIDKey is the context key for the identity provider subject id of the session.
	IdentityUIDKey = "identityUID"
	// IdentityEmailKey is the context key for the email carried by the session.
	IdentityEmailKey = "identityEmail"
	// IdentityEmailVerifiedKey is the context key for the session's email verified flag.
	IdentityEmailVerifiedKey = "identityEmailVerified"
	// VerificationPendingKey is set for password sessions whose email is not confirmed.
	VerificationPendingKey = "verificationPending"
	// SessionCookieKey is the context key holding the raw session cookie value.
	SessionCookieKey = "sessionCookie"
	// LoggerKey lets handlers pick up the request scoped logger.
	LoggerKey = "logger"
)
