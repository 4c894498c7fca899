package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer() (Tracer, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewTracer(tp.Tracer("test")), recorder
}

func TestRouteMeta_Path(t *testing.T) {
	tests := []struct {
		meta RouteMeta
		want string
	}{
		{RouteMeta{RouteID: "site", ActionID: "index"}, "site/index"},
		{RouteMeta{RouteID: "site"}, "site"},
	}
	for _, tc := range tests {
		if got := tc.meta.Path(); got != tc.want {
			t.Errorf("Path() = %q, want %q", got, tc.want)
		}
	}
}

func TestTracer_SpanAttributes(t *testing.T) {
	tracer, recorder := newRecordingTracer()
	meta := RouteMeta{RouteID: "site", ActionID: "index", Key: "site_index_x.html"}

	_, span := tracer.StartSpan(context.Background(), OpRead, meta)
	tracer.EndSpan(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "pagecache.read" {
		t.Errorf("expected span name 'pagecache.read', got %q", s.Name())
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("expected Ok status, got %v", s.Status().Code)
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs["route.id"].AsString() != "site" {
		t.Errorf("route.id = %v", attrs["route.id"])
	}
	if attrs["route.action"].AsString() != "index" {
		t.Errorf("route.action = %v", attrs["route.action"])
	}
	if attrs["cache.key"].AsString() != "site_index_x.html" {
		t.Errorf("cache.key = %v", attrs["cache.key"])
	}
}

func TestTracer_EndSpanRecordsError(t *testing.T) {
	tracer, recorder := newRecordingTracer()

	_, span := tracer.StartSpan(context.Background(), OpWrite, RouteMeta{RouteID: "site"})
	tracer.EndSpan(span, errors.New("cache: storage unwritable"))

	s := recorder.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("expected Error status, got %v", s.Status().Code)
	}
	if len(s.Events()) == 0 {
		t.Error("expected an exception event to be recorded")
	}
	for _, kv := range s.Attributes() {
		if kv.Key == "pagecache.error" && !kv.Value.AsBool() {
			t.Error("expected pagecache.error=true")
		}
	}
}

func TestNopTracer_NoPanic(t *testing.T) {
	tracer := NopTracer()
	_, span := tracer.StartSpan(context.Background(), OpClear, RouteMeta{})
	tracer.EndSpan(span, nil)
}
