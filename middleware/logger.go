package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/devmarvs/yaade"
)

const defaultLogMessage = "request completed"

// LoggerOptions configures the access log.
//
// Failed requests are always logged at warn level, or at error level for
// 5xx when ErrorLevel is set. Successful requests are logged at info level
// when Sampler keeps them.
type LoggerOptions struct {
	Fields     []LogField
	Message    string
	SkipPaths  []string
	ErrorLevel bool
	Sampler    Sampler
}

// Logger writes one access log line per request with DefaultLogFields.
func Logger() yaade.Middleware {
	return LoggerWithOptions(LoggerOptions{})
}

// LoggerWith logs the given fields instead of the defaults.
func LoggerWith(fields ...LogField) yaade.Middleware {
	return LoggerWithOptions(LoggerOptions{Fields: fields})
}

// LoggerWithOptions logs requests as configured by options.
func LoggerWithOptions(options LoggerOptions) yaade.Middleware {
	if len(options.Fields) == 0 {
		options.Fields = DefaultLogFields()
	}
	if options.Message == "" {
		options.Message = defaultLogMessage
	}
	skip := newSkipList(options.SkipPaths)

	return func(next yaade.Handler) yaade.Handler {
		return func(ctx *yaade.Context) error {
			if skip.match(ctx.Request.URL.Path) {
				return next(ctx)
			}

			start := time.Now()
			recorder := newResponseRecorder(ctx.ResponseWriter)
			ctx.ResponseWriter = recorder

			err := next(ctx)

			outcome := Outcome{
				Status:   finalStatus(recorder, err),
				Bytes:    recorder.bytes,
				Duration: time.Since(start),
				Err:      err,
			}
			attrs := make([]slog.Attr, 0, len(options.Fields))
			for _, field := range options.Fields {
				attrs = append(attrs, field(ctx, outcome))
			}

			logger := ctx.Logger()
			switch {
			case options.ErrorLevel && outcome.Status >= http.StatusInternalServerError:
				logger.Error(options.Message, attrs...)
			case outcome.Failed():
				logger.Warn(options.Message, attrs...)
			case options.Sampler == nil || options.Sampler(ctx):
				logger.Info(options.Message, attrs...)
			}
			return err
		}
	}
}
