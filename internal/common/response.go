// File: internal/common/response.go
package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SuccessResponse wraps successful API responses.
type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// RespondWithError sends a JSON error response. Errors that are not APIErrors are
// logged and replaced with a generic 500 so raw internals never reach the client.
func RespondWithError(c *gin.Context, err error) {
	apiErr, ok := IsAPIError(err)
	if !ok {
		if l, exists := c.Get(LoggerKey); exists {
			if logger, ok := l.(*zap.Logger); ok {
				logger.Error("Unhandled internal error being wrapped", zap.Error(err))
			}
		}
		apiErr = ErrInternalServer
	}

	c.AbortWithStatusJSON(apiErr.StatusCode, apiErr)
}

// RespondSuccess sends a JSON success response.
func RespondSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, SuccessResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// RespondOK sends a 200 OK response.
func RespondOK(c *gin.Context, message string, data interface{}) {
	RespondSuccess(c, http.StatusOK, message, data)
}

// RespondCreated sends a 201 Created response.
func RespondCreated(c *gin.Context, message string, data interface{}) {
	RespondSuccess(c, http.StatusCreated, message, data)
}
