package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig returns default CORS configuration
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Accept", "Origin", "Cache-Control", "X-Requested-With", TraceIDHeader},
		ExposeHeaders: []string{TraceIDHeader},
		MaxAge:        86400,
	}
}

// CORS creates a CORS middleware with default configuration
func CORS() gin.HandlerFunc {
	return CORSWithConfig(DefaultCORSConfig())
}

// CORSWithConfig creates a CORS middleware with custom configuration
func CORSWithConfig(config CORSConfig) gin.HandlerFunc {
	allowHeaders := strings.Join(config.AllowHeaders, ", ")
	allowMethods := strings.Join(config.AllowMethods, ", ")
	exposeHeaders := strings.Join(config.ExposeHeaders, ", ")

	return func(c *gin.Context) {
		origin := "*"
		if len(config.AllowOrigins) > 0 && config.AllowOrigins[0] != "*" {
			origin = ""
			reqOrigin := c.Request.Header.Get("Origin")
			for _, o := range config.AllowOrigins {
				if o == reqOrigin {
					origin = reqOrigin
					break
				}
			}
		}

		h := c.Writer.Header()
		if origin != "" {
			h.Set("Access-Control-Allow-Origin", origin)
		}
		// Credentials are never combined with the wildcard origin.
		if config.AllowCredentials && origin != "*" && origin != "" {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		if allowHeaders != "" {
			h.Set("Access-Control-Allow-Headers", allowHeaders)
		}
		if allowMethods != "" {
			h.Set("Access-Control-Allow-Methods", allowMethods)
		}
		if exposeHeaders != "" {
			h.Set("Access-Control-Expose-Headers", exposeHeaders)
		}
		if config.MaxAge > 0 {
			h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
