package observe

import (
	"context"
	"time"
)

// RenderFunc renders the page identified by meta.
type RenderFunc func(ctx context.Context, meta RouteMeta) ([]byte, error)

// Middleware wraps page rendering with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: WrapRender returns a thread-safe RenderFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
// Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Tracer returns the middleware's tracer.
func (m *Middleware) Tracer() Tracer { return m.tracer }

// Metrics returns the middleware's metrics recorder.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger { return m.logger }

// WrapRender wraps a RenderFunc with tracing, metrics, and logging.
func (m *Middleware) WrapRender(fn RenderFunc) RenderFunc {
	return func(ctx context.Context, meta RouteMeta) ([]byte, error) {
		ctx, span := m.tracer.StartSpan(ctx, OpRender, meta)
		start := time.Now()

		body, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordRender(ctx, meta, duration, err)

		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
			{Key: "bytes", Value: len(body)},
		}
		routeLogger := m.logger.WithRoute(meta)
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			routeLogger.Error(ctx, "page render failed", fields...)
		} else {
			routeLogger.Debug(ctx, "page rendered", fields...)
		}

		return body, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
