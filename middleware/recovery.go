package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/onchaincommerce/minibet/types"
)

// Recovery creates a recovery middleware that recovers from panics
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				traceID := GetTraceID(c)

				logger.Error().
					Str("trace_id", traceID).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Str("client_ip", c.ClientIP()).
					Interface("error", err).
					Str("stack", string(debug.Stack())).
					Msg("Panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, types.NewErrorResponse(
					http.StatusInternalServerError,
					time.Now().Format(time.RFC3339),
					c.Request.URL.Path,
					"Internal server error",
					http.StatusInternalServerError,
					traceID,
				))
			}
		}()

		c.Next()
	}
}
