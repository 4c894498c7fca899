package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Lookup outcomes.
const (
	OutcomeHit  = "hit"
	OutcomeMiss = "miss"
	OutcomeSkip = "skip"
)

// Metrics records page cache activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records one read-path decision. reason is empty for hits
	// and misses and names the skip rule otherwise.
	RecordLookup(ctx context.Context, meta RouteMeta, outcome, reason string)

	// RecordWrite records one persisted entry of size bytes.
	RecordWrite(ctx context.Context, meta RouteMeta, size int, err error)

	// RecordRender records how long the wrapped handler took to render.
	RecordRender(ctx context.Context, meta RouteMeta, duration time.Duration, err error)
}

type metricsImpl struct {
	lookups      metric.Int64Counter
	writes       metric.Int64Counter
	writeErrors  metric.Int64Counter
	writeBytes   metric.Int64Histogram
	renderErrors metric.Int64Counter
	renderHist   metric.Float64Histogram
}

// NewMetrics creates Metrics backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	lookups, err := meter.Int64Counter(
		"pagecache.lookup.total",
		metric.WithDescription("Page cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	writes, err := meter.Int64Counter(
		"pagecache.write.total",
		metric.WithDescription("Page cache entries written"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	writeErrors, err := meter.Int64Counter(
		"pagecache.write.errors",
		metric.WithDescription("Page cache writes that failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	writeBytes, err := meter.Int64Histogram(
		"pagecache.write.bytes",
		metric.WithDescription("Size of persisted page cache entries"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	renderErrors, err := meter.Int64Counter(
		"pagecache.render.errors",
		metric.WithDescription("Renders that failed on a cache miss"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	renderHist, err := meter.Float64Histogram(
		"pagecache.render.duration_ms",
		metric.WithDescription("Render duration on a cache miss in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		lookups:      lookups,
		writes:       writes,
		writeErrors:  writeErrors,
		writeBytes:   writeBytes,
		renderErrors: renderErrors,
		renderHist:   renderHist,
	}, nil
}

func routeAttrs(meta RouteMeta, extra ...attribute.KeyValue) metric.MeasurementOption {
	attrs := append([]attribute.KeyValue{
		attribute.String("route.id", meta.RouteID),
		attribute.String("route.action", meta.ActionID),
	}, extra...)
	return metric.WithAttributes(attrs...)
}

func (m *metricsImpl) RecordLookup(ctx context.Context, meta RouteMeta, outcome, reason string) {
	extra := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if reason != "" {
		extra = append(extra, attribute.String("reason", reason))
	}
	m.lookups.Add(ctx, 1, routeAttrs(meta, extra...))
}

func (m *metricsImpl) RecordWrite(ctx context.Context, meta RouteMeta, size int, err error) {
	opt := routeAttrs(meta)
	if err != nil {
		m.writeErrors.Add(ctx, 1, opt)
		return
	}
	m.writes.Add(ctx, 1, opt)
	m.writeBytes.Record(ctx, int64(size), opt)
}

func (m *metricsImpl) RecordRender(ctx context.Context, meta RouteMeta, duration time.Duration, err error) {
	opt := routeAttrs(meta)
	if err != nil {
		m.renderErrors.Add(ctx, 1, opt)
	}
	m.renderHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// NopMetrics returns a Metrics implementation that does nothing.
func NopMetrics() Metrics { return noopMetrics{} }

type noopMetrics struct{}

func (noopMetrics) RecordLookup(context.Context, RouteMeta, string, string)       {}
func (noopMetrics) RecordWrite(context.Context, RouteMeta, int, error)            {}
func (noopMetrics) RecordRender(context.Context, RouteMeta, time.Duration, error) {}
