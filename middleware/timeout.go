package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/onchaincommerce/minibet/types"
)

// Timeout bounds the request context. Handlers that honour the context and
// return without writing get a 504 response.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, types.NewErrorResponse(
				http.StatusGatewayTimeout,
				time.Now().Format(time.RFC3339),
				c.Request.URL.Path,
				"Request timeout",
				http.StatusGatewayTimeout,
				GetTraceID(c),
			))
		}
	}
}
