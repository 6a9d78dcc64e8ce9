package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dentallab/internal/core/apperror"
	appctx "dentallab/internal/core/context"
	"dentallab/pkg/logger"
)

// errorResponse renders err the way clients see it. Errors that are not
// AppErrors become a generic 500.
func errorResponse(c *gin.Context, err error) (int, gin.H) {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.HTTPStatus, gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		}
	}
	return http.StatusInternalServerError, gin.H{
		"code":    apperror.CodeInternal,
		"message": "Internal server error",
		"details": map[string]any{
			"request_id": appctx.RequestID(c.Request.Context()),
		},
	}
}

// ErrorHandler writes the last error of the request as {code, message, details}
// and logs causes that are hidden from the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error", "code", appErr.Code, "cause", appErr.Err)
			}
		} else {
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
		}

		status, body := errorResponse(c, err)
		c.JSON(status, body)
	}
}
