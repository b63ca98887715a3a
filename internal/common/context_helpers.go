// File: internal/common/context_helpers.go
package common

import (
	"github.com/gin-gonic/gin"
)

// GetIdentityUIDFromContext retrieves the provider subject id set by the session middleware.
// Returns an empty string if the request is not authenticated.
func GetIdentityUIDFromContext(c *gin.Context) string {
	return getString(c, IdentityUIDKey)
}

// GetIdentityEmailFromContext retrieves the session email.
func GetIdentityEmailFromContext(c *gin.Context) string {
	return getString(c, IdentityEmailKey)
}

// GetEmailVerifiedFromContext reports whether the session's email was verified when the cookie was minted.
func GetEmailVerifiedFromContext(c *gin.Context) bool {
	val, exists := c.Get(IdentityEmailVerifiedKey)
	if !exists {
		return false
	}
	verified, _ := val.(bool)
	return verified
}

// IsVerificationPending reports whether the session still waits for email confirmation.
func IsVerificationPending(c *gin.Context) bool {
	return c.GetBool(VerificationPendingKey)
}

func getString(c *gin.Context, key string) string {
	val, exists := c.Get(key)
	if !exists {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		return ""
	}
	return s
}
