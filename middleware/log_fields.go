package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/devmarvs/yaade"
	"go.opentelemetry.io/otel/trace"
)

// Outcome is what the access log knows about a finished request.
type Outcome struct {
	Status   int
	Bytes    int
	Duration time.Duration
	Err      error
}

// Failed reports a handler error or a 5xx status.
func (o Outcome) Failed() bool {
	return o.Err != nil || o.Status >= http.StatusInternalServerError
}

// LogField renders one access log attribute.
type LogField func(*yaade.Context, Outcome) slog.Attr

// DefaultLogFields are method, path, status, duration and response bytes.
func DefaultLogFields() []LogField {
	return []LogField{LogMethod(), LogPath(), LogStatus(), LogDuration(), LogBytes()}
}

func LogMethod() LogField {
	return func(ctx *yaade.Context, _ Outcome) slog.Attr {
		return slog.String("method", ctx.Request.Method)
	}
}

func LogPath() LogField {
	return func(ctx *yaade.Context, _ Outcome) slog.Attr {
		return slog.String("path", ctx.Request.URL.Path)
	}
}

func LogStatus() LogField {
	return func(_ *yaade.Context, o Outcome) slog.Attr {
		return slog.Int("status", o.Status)
	}
}

func LogDuration() LogField {
	return func(_ *yaade.Context, o Outcome) slog.Attr {
		return slog.Duration("duration", o.Duration)
	}
}

func LogBytes() LogField {
	return func(_ *yaade.Context, o Outcome) slog.Attr {
		return slog.Int("bytes", o.Bytes)
	}
}

// LogError logs the handler error, empty on success.
func LogError() LogField {
	return func(_ *yaade.Context, o Outcome) slog.Attr {
		if o.Err == nil {
			return slog.String("error", "")
		}
		return slog.String("error", o.Err.Error())
	}
}

// LogRemoteAddr logs the client host without its port.
func LogRemoteAddr() LogField {
	return func(ctx *yaade.Context, _ Outcome) slog.Attr {
		host, _, err := net.SplitHostPort(ctx.Request.RemoteAddr)
		if err != nil {
			host = ctx.Request.RemoteAddr
		}
		return slog.String("remote_addr", host)
	}
}

func LogUserAgent() LogField {
	return func(ctx *yaade.Context, _ Outcome) slog.Attr {
		return slog.String("user_agent", ctx.Request.UserAgent())
	}
}

func LogRequestID() LogField {
	return func(ctx *yaade.Context, _ Outcome) slog.Attr {
		return slog.String("request_id", ctx.RequestID())
	}
}

// LogUser logs the principal the gate admitted, empty for public routes.
func LogUser() LogField {
	return func(ctx *yaade.Context, _ Outcome) slog.Attr {
		principal, _ := ctx.Principal()
		return slog.String("user", principal.Username)
	}
}

// LogTraceID logs the trace id of the active span.
func LogTraceID() LogField {
	return func(ctx *yaade.Context, _ Outcome) slog.Attr {
		spanCtx := trace.SpanContextFromContext(ctx.Context())
		if !spanCtx.HasTraceID() {
			return slog.String("trace_id", "")
		}
		return slog.String("trace_id", spanCtx.TraceID().String())
	}
}

// LogRequestBytes logs the declared request body size.
func LogRequestBytes() LogField {
	return func(ctx *yaade.Context, _ Outcome) slog.Attr {
		return slog.Int64("request_bytes", ctx.Request.ContentLength)
	}
}
