package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"dpchat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler returns a middleware that catches and formats application errors.
// Details are only written to the response when exposeDetails is set.
func ErrorHandler(exposeDetails bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := FromError(c.Errors[0].Err)

		log := logger.FromGin(c)
		args := []any{
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"status_code", appErr.StatusCode,
			"error_code", appErr.Code,
			"message", appErr.Message,
		}
		if appErr.Details != nil {
			args = append(args, "details", appErr.Details)
		}
		if appErr.StatusCode >= http.StatusInternalServerError {
			log.Error("Request error", args...)
		} else {
			log.Warn("Request rejected", args...)
		}

		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(appErr.StatusCode, Body(appErr, exposeDetails))
	}
}

// RecoveryWithLogger returns a middleware that recovers from any panics
// and logs the error with the request ID
func RecoveryWithLogger(exposeDetails bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())

				logger.FromGin(c).Error("Panic recovered",
					"error", fmt.Sprintf("%v", r),
					"stack", stack,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				appErr := NewInternalServerError(CodeServerPanic, "The server encountered an unexpected error")
				if exposeDetails {
					appErr.Details = fmt.Sprintf("Panic: %v", r)
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, Body(appErr, exposeDetails))
			}
		}()

		c.Next()
	}
}
