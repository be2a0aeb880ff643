package yaade

import (
	"context"
	"log/slog"
)

// Logger is the request-scoped logger handed out by Context. Every record
// carries the request id and, for contract routes, the operation id.
type Logger struct {
	logger    *slog.Logger
	ctx       context.Context
	requestID string
	operation string
}

// Debug logs at debug level.
func (l Logger) Debug(msg string, attrs ...slog.Attr) {
	l.log(slog.LevelDebug, msg, attrs)
}

// Info logs at info level.
func (l Logger) Info(msg string, attrs ...slog.Attr) {
	l.log(slog.LevelInfo, msg, attrs)
}

// Warn logs at warn level.
func (l Logger) Warn(msg string, attrs ...slog.Attr) {
	l.log(slog.LevelWarn, msg, attrs)
}

// Error logs at error level.
func (l Logger) Error(msg string, attrs ...slog.Attr) {
	l.log(slog.LevelError, msg, attrs)
}

func (l Logger) log(level slog.Level, msg string, attrs []slog.Attr) {
	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if l.requestID != "" {
		attrs = append(attrs, slog.String("request_id", l.requestID))
	}
	if l.operation != "" {
		attrs = append(attrs, slog.String("operation", l.operation))
	}
	l.logger.LogAttrs(ctx, level, msg, attrs...)
}
