package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

// RequestIDKey carries the per-request identifier through context.
const RequestIDKey contextKey = "request_id"

// ContextLogger decorates a zap logger with request-scoped fields.
type ContextLogger struct {
	logger *zap.Logger
}

func NewContextLogger(logger *zap.Logger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

// WithContext returns a logger carrying any request ID found in ctx.
func (cl *ContextLogger) WithContext(ctx context.Context) *zap.Logger {
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		return cl.logger.With(zap.String("request_id", id))
	}
	return cl.logger
}

// WithFields adds custom fields to the logger.
func (cl *ContextLogger) WithFields(fields ...zapcore.Field) *zap.Logger {
	return cl.logger.With(fields...)
}

// LogRequest logs one handled HTTP request.
func (cl *ContextLogger) LogRequest(ctx context.Context, method, path string, statusCode int, durationMs int64) {
	cl.WithContext(ctx).Info("http_request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", durationMs),
	)
}
