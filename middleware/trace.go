package middleware

import (
	"context"

	"github.com/devmarvs/yaade"
)

// Tracer opens a span for a request. The returned context carries the span
// and finish is called once with the final status and handler error.
type Tracer interface {
	Start(*yaade.Context) (ctx context.Context, finish func(status int, err error))
}

// TraceOptions configures Trace. A nil Tracer disables tracing.
type TraceOptions struct {
	Tracer    Tracer
	SkipPaths []string
}

// Trace opens a span around every request.
func Trace(tracer Tracer) yaade.Middleware {
	return TraceWithOptions(TraceOptions{Tracer: tracer})
}

// TraceWithOptions is Trace with skip paths.
func TraceWithOptions(options TraceOptions) yaade.Middleware {
	skip := newSkipList(options.SkipPaths)
	return func(next yaade.Handler) yaade.Handler {
		if options.Tracer == nil {
			return next
		}
		return func(ctx *yaade.Context) error {
			if skip.match(ctx.Request.URL.Path) {
				return next(ctx)
			}

			spanCtx, finish := options.Tracer.Start(ctx)
			if spanCtx != nil {
				ctx.Request = ctx.Request.WithContext(spanCtx)
			}
			recorder := newResponseRecorder(ctx.ResponseWriter)
			ctx.ResponseWriter = recorder

			err := next(ctx)
			if finish != nil {
				finish(finalStatus(recorder, err), err)
			}
			return err
		}
	}
}
