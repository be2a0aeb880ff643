package middleware

import (
	"github.com/devmarvs/yaade"
	"github.com/devmarvs/yaade/metrics"
)

// MetricsOptions configures request metrics.
type MetricsOptions struct {
	Registry  *metrics.Registry
	SkipPaths []string
}

// Metrics records request metrics into the registry.
func Metrics(registry *metrics.Registry) yaade.Middleware {
	return MetricsWithOptions(MetricsOptions{Registry: registry})
}

// MetricsWithOptions records request metrics with options.
func MetricsWithOptions(options MetricsOptions) yaade.Middleware {
	skip := newSkipList(options.SkipPaths)
	return func(next yaade.Handler) yaade.Handler {
		if options.Registry == nil {
			return next
		}
		return func(ctx *yaade.Context) error {
			if skip.match(ctx.Request.URL.Path) {
				return next(ctx)
			}

			start := options.Registry.Start()
			recorder := newResponseRecorder(ctx.ResponseWriter)
			ctx.ResponseWriter = recorder

			err := next(ctx)

			options.Registry.End(start, ctx.OperationID(), ctx.Request.Method, finalStatus(recorder, err))
			return err
		}
	}
}
