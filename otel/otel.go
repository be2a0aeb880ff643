// Package otel adapts OpenTelemetry tracing to middleware.Trace.
package otel

import (
	"context"

	"github.com/devmarvs/yaade"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const defaultName = "github.com/devmarvs/yaade"

// Option configures a Tracer.
type Option func(*Tracer)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(t *Tracer) {
		if provider != nil {
			t.provider = provider
		}
	}
}

// WithPropagator overrides the global text map propagator.
func WithPropagator(propagator propagation.TextMapPropagator) Option {
	return func(t *Tracer) {
		if propagator != nil {
			t.propagator = propagator
		}
	}
}

// Tracer starts one server span per request. Contract routes are named
// after their operation id, everything else after method and path.
type Tracer struct {
	provider   trace.TracerProvider
	propagator propagation.TextMapPropagator
	tracer     trace.Tracer
}

// NewTracer creates a tracer adapter using the global provider unless overridden.
func NewTracer(name string, options ...Option) *Tracer {
	if name == "" {
		name = defaultName
	}
	t := &Tracer{
		provider:   otel.GetTracerProvider(),
		propagator: otel.GetTextMapPropagator(),
	}
	for _, opt := range options {
		opt(t)
	}
	t.tracer = t.provider.Tracer(name)
	return t
}

// Start starts a span for the request.
func (t *Tracer) Start(ctx *yaade.Context) (context.Context, func(status int, err error)) {
	if t == nil || ctx == nil || ctx.Request == nil {
		return context.Background(), nil
	}

	req := ctx.Request
	parent := t.propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))

	name := req.Method + " " + req.URL.Path
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.URL.Path),
	}
	if op, ok := ctx.Operation(); ok {
		name = op.ID
		attrs = append(attrs,
			attribute.String("yaade.operation", op.ID),
			attribute.String("http.route", op.Path),
		)
	}
	if id := ctx.RequestID(); id != "" {
		attrs = append(attrs, attribute.String("yaade.request_id", id))
	}
	if ua := req.UserAgent(); ua != "" {
		attrs = append(attrs, attribute.String("user_agent.original", ua))
	}

	spanCtx, span := t.tracer.Start(parent, name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)

	return spanCtx, func(status int, err error) {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		switch {
		case err != nil && status >= 500:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case status >= 500:
			span.SetStatus(codes.Error, "")
		}
		span.End()
	}
}
