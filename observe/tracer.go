package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Cache operation names used for spans and metrics.
const (
	OpRead   = "read"
	OpWrite  = "write"
	OpRender = "render"
	OpClear  = "clear"
)

// RouteMeta identifies the page a cache operation is about.
type RouteMeta struct {
	RouteID  string // Route (controller) id
	ActionID string // Action id within the route
	Key      string // Cache key, when already computed
}

// Path returns "route/action", or just the route when no action is set.
func (m RouteMeta) Path() string {
	if m.ActionID == "" {
		return m.RouteID
	}
	return m.RouteID + "/" + m.ActionID
}

// SpanName returns the deterministic span name for an operation.
// Format: pagecache.<op>
func (m RouteMeta) SpanName(op string) string {
	return "pagecache." + op
}

func (m RouteMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("route.id", m.RouteID),
		attribute.String("route.action", m.ActionID),
	}
	if m.Key != "" {
		attrs = append(attrs, attribute.String("cache.key", m.Key))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with page-cache span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a cache operation.
	StartSpan(ctx context.Context, op string, meta RouteMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with route metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, op string, meta RouteMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("pagecache.error", false))

	return t.tracer.Start(ctx, meta.SpanName(op),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("pagecache.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a tracer whose spans are never recorded.
func NopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

type noopTracer struct {
	noop trace.Tracer
}

func (t *noopTracer) StartSpan(ctx context.Context, op string, meta RouteMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName(op))
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
