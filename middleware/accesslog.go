package middleware

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

type requestLogKey struct{}

type requestLog struct {
	operation atomic.Value
}

// RecordOperation stores the GraphQL operation name for the access log
// entry of the request behind ctx. It is a no-op outside AccessLog.
func RecordOperation(ctx context.Context, name string) {
	rl, ok := ctx.Value(requestLogKey{}).(*requestLog)
	if !ok {
		return
	}
	rl.operation.Store(name)
}

// AccessLog logs method, path, status, latency, client IP and GraphQL
// operation of every request. 5xx responses log at error level.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		rl := &requestLog{}
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestLogKey{}, rl))

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if op, _ := rl.operation.Load().(string); op != "" {
			attrs = append(attrs, "operation", op)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request", attrs...)
	}
}
