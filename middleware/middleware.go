// Package middleware holds the request pipeline stages of the yaade server.
package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/devmarvs/yaade"
	"github.com/devmarvs/yaade/apperr"
)

// RequestID keeps a valid inbound X-Request-ID or mints one, and echoes it
// on the response.
func RequestID() yaade.Middleware {
	return func(next yaade.Handler) yaade.Handler {
		return func(ctx *yaade.Context) error {
			id := ctx.RequestID()
			if id == "" {
				id = yaade.NewRequestID()
				ctx.Request.Header.Set(yaade.RequestIDHeader, id)
			}
			ctx.ResponseWriter.Header().Set(yaade.RequestIDHeader, id)
			return next(ctx)
		}
	}
}

// Recover turns a panic into an internal error and logs its stack.
func Recover() yaade.Middleware {
	return func(next yaade.Handler) yaade.Handler {
		return func(ctx *yaade.Context) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					ctx.Logger().Error("panic recovered",
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
					err = apperr.Internal("panic", fmt.Errorf("%v", rec))
				}
			}()
			return next(ctx)
		}
	}
}
