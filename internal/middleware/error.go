// File: internal/middleware/error.go
package middleware

import (
	"net/http"

	"student_portal_backend/internal/auth"
	"student_portal_backend/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler creates a Gin middleware for centralized error handling.
// Errors attached with c.Error are rendered through the same mapping the auth
// handlers use, and unmatched routes get the JSON error shape.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			ginErr := c.Errors.Last()
			apiErr := auth.ToAPIError(ginErr.Err)
			if apiErr.StatusCode >= http.StatusInternalServerError {
				logger.Error("Unhandled application error",
					zap.Error(ginErr.Err),
					zap.String("path", c.Request.URL.Path),
					zap.Any("meta", ginErr.Meta),
					zap.String("request_id", c.GetString(RequestIDContextKey)),
				)
			}
			c.AbortWithStatusJSON(apiErr.StatusCode, apiErr)
			return
		}

		if c.Writer.Written() {
			return
		}
		switch c.Writer.Status() {
		case http.StatusNotFound:
			notFound := common.ErrNotFound.WithDetails("The requested endpoint does not exist.")
			c.AbortWithStatusJSON(notFound.StatusCode, notFound)
		case http.StatusMethodNotAllowed:
			notAllowed := common.NewAPIError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "The method is not allowed for the requested URL.")
			c.AbortWithStatusJSON(notAllowed.StatusCode, notAllowed)
		}
	}
}
