package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse log line as JSON: %v\nLine: %s", err, line)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_IncludesRouteFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.WithRoute(RouteMeta{RouteID: "site", ActionID: "index", Key: "site_index_abc.html"}).
		Info(context.Background(), "cache hit")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry["route.id"] != "site" {
		t.Errorf("expected route.id='site', got %v", entry["route.id"])
	}
	if entry["route.action"] != "index" {
		t.Errorf("expected route.action='index', got %v", entry["route.action"])
	}
	if entry["cache.key"] != "site_index_abc.html" {
		t.Errorf("expected cache.key, got %v", entry["cache.key"])
	}
	if entry["msg"] != "cache hit" || entry["level"] != "info" {
		t.Errorf("unexpected msg/level: %v/%v", entry["msg"], entry["level"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries at warn level, got %d", len(entries))
	}
	if entries[0]["msg"] != "warn" || entries[1]["msg"] != "error" {
		t.Errorf("unexpected entries: %v", entries)
	}
}

func TestLogger_RedactsTokens(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Info(context.Background(), "issued",
		Field{Key: "csrf_token", Value: "eyJhbGciOi"},
		Field{Key: "session", Value: "3f1c"},
		Field{Key: "path", Value: "/site/index"},
	)

	out := buf.String()
	if strings.Contains(out, "eyJhbGciOi") || strings.Contains(out, "3f1c") {
		t.Fatalf("secret values leaked into log: %s", out)
	}
	if !strings.Contains(out, "/site/index") {
		t.Errorf("expected non-sensitive field to be logged: %s", out)
	}
}

func TestLogger_ErrorValuesAreStrings(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Error(context.Background(), "write failed", Field{Key: "error", Value: errors.New("disk full")})

	entries := decodeLines(t, &buf)
	if entries[0]["error"] != "disk full" {
		t.Errorf("expected error string, got %v", entries[0]["error"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"error":   LevelError,
		"unknown": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNopLogger_WithRoute(t *testing.T) {
	if NopLogger().WithRoute(RouteMeta{RouteID: "site"}) == nil {
		t.Fatal("WithRoute should return non-nil logger")
	}
}
