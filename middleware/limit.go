package middleware

import (
	"net/http"

	"github.com/devmarvs/yaade"
)

// BodyLimit caps the request body size and buffers the body on the Context,
// so an oversized body fails here with 413 before routing stages run.
func BodyLimit(maxBytes int64) yaade.Middleware {
	return func(next yaade.Handler) yaade.Handler {
		return func(ctx *yaade.Context) error {
			if maxBytes > 0 && ctx.Request.Body != nil && ctx.Request.Body != http.NoBody {
				ctx.Request.Body = http.MaxBytesReader(ctx.ResponseWriter, ctx.Request.Body, maxBytes)
			}
			if _, err := ctx.RawBody(); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}
