package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TraceIDKey is the key used to store trace ID in context
	TraceIDKey = "trace_id"
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// RequestTimeKey is the key used to store request start time
	RequestTimeKey = "request_time"
)

type traceIDCtxKey struct{}

// TraceID creates a middleware that adds a unique trace_id to each request.
// The id is also attached to the request context so code below the handler
// layer can read it with TraceIDFromContext.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Set(TraceIDKey, traceID)
		c.Request = c.Request.WithContext(ContextWithTraceID(c.Request.Context(), traceID))
		c.Header(TraceIDHeader, traceID)
		c.Set(RequestTimeKey, time.Now())

		c.Next()
	}
}

// ContextWithTraceID returns ctx carrying traceID.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDCtxKey{}, traceID)
}

// TraceIDFromContext returns the trace id stored in ctx, or "".
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceIDCtxKey{}).(string)
	return id
}

// GetTraceID extracts trace ID from gin context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if str, ok := traceID.(string); ok {
			return str
		}
	}
	return ""
}

// GetRequestTime extracts request start time from gin context
func GetRequestTime(c *gin.Context) time.Time {
	if reqTime, exists := c.Get(RequestTimeKey); exists {
		if t, ok := reqTime.(time.Time); ok {
			return t
		}
	}
	return time.Now()
}
