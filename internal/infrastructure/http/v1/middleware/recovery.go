// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"dentallab/internal/core/apperror"
	appctx "dentallab/internal/core/context"
	"dentallab/pkg/logger"
)

// Recovery converts a handler panic into an internal error for ErrorHandler.
// A panic after the response was written only aborts the chain.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := c.Request.Context()
			logger.Error(ctx, "handler panicked", "panic", rec, "stack", string(debug.Stack()))

			if !c.Writer.Written() {
				_ = c.Error(apperror.NewInternal(fmt.Errorf("panic in %s: %v", c.FullPath(), rec)).
					WithDetail("request_id", appctx.RequestID(ctx)))
			}
			c.Abort()
		}()
		c.Next()
	}
}
