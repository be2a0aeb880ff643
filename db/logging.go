package db

import (
	"context"
	"log/slog"
	"time"
)

// QueryHook receives query timing information.
type QueryHook func(ctx context.Context, query string, args []any, duration time.Duration, err error)

// SlogHook logs every query at debug level and failures at warn level.
func SlogHook(logger *slog.Logger) QueryHook {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, query string, args []any, duration time.Duration, err error) {
		if err != nil {
			logger.WarnContext(ctx, "query failed", slog.String("query", query), slog.Duration("duration", duration), slog.String("error", err.Error()))
			return
		}
		logger.DebugContext(ctx, "query", slog.String("query", query), slog.Int("args", len(args)), slog.Duration("duration", duration))
	}
}
