package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// LoggingConfig holds logging middleware configuration
type LoggingConfig struct {
	SkipPaths []string // Paths to skip logging (e.g., health checks)

	// Network is attached to every request line.
	Network string

	// ParamFields maps route parameters to log fields.
	ParamFields map[string]string

	// ContextFields maps gin context keys set by later handlers (the JWT
	// caller, for example) to log fields. They are read after the handler ran.
	ContextFields map[string]string
}

// DefaultLoggingConfig names the player and transaction parameters of the
// API routes and the authenticated caller.
func DefaultLoggingConfig(network string) LoggingConfig {
	return LoggingConfig{
		SkipPaths:     []string{"/health", "/api/health", "/metrics"},
		Network:       network,
		ParamFields:   map[string]string{"address": "player", "hash": "tx_hash"},
		ContextFields: map[string]string{"address": "caller"},
	}
}

// Logging creates a logging middleware
func Logging(logger zerolog.Logger, network string) gin.HandlerFunc {
	return LoggingWithConfig(logger, DefaultLoggingConfig(network))
}

// LoggingWithConfig creates a logging middleware with custom configuration
func LoggingWithConfig(logger zerolog.Logger, config LoggingConfig) gin.HandlerFunc {
	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		startTime := time.Now()

		ctx := logger.With().
			Str("trace_id", GetTraceID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP())
		if config.Network != "" {
			ctx = ctx.Str("network", config.Network)
		}
		for param, field := range config.ParamFields {
			if v := c.Param(param); v != "" {
				ctx = ctx.Str(field, strings.ToLower(v))
			}
		}
		reqLogger := ctx.Logger()

		reqLogger.Debug().Str("user_agent", c.Request.UserAgent()).Msg("Request started")

		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = reqLogger.Error()
		case status >= 400:
			event = reqLogger.Warn()
		default:
			event = reqLogger.Info()
		}

		for key, field := range config.ContextFields {
			if v, ok := c.Get(key); ok {
				event = event.Str(field, contextString(v))
			}
		}

		msg := "Request completed"
		if strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream") ||
			strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			msg = "Stream closed"
		}

		event.
			Str("route", c.FullPath()).
			Int("status", status).
			Dur("duration", time.Since(startTime)).
			Int("response_size", c.Writer.Size()).
			Msg(msg)

		for _, err := range c.Errors {
			reqLogger.Error().
				Err(err.Err).
				Uint64("type", uint64(err.Type)).
				Msg("Request error")
		}
	}
}

func contextString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
