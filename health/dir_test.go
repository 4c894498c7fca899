package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// fakeProbe reports a fixed directory and write probe result.
type fakeProbe struct {
	dir string
	err error
}

func (p fakeProbe) Dir() string                 { return p.dir }
func (p fakeProbe) Check(context.Context) error { return p.err }

func TestDirChecker_Healthy(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "site_index_x.html"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := NewDirChecker("cache_dir", fakeProbe{dir: dir}).Check(context.Background())
	if result.Status != StatusHealthy {
		t.Fatalf("Status = %v (%s)", result.Status, result.Message)
	}
	if result.Details["entries"] != 1 {
		t.Errorf("entries = %v, want 1", result.Details["entries"])
	}
}

func TestDirChecker_MissingIsDegraded(t *testing.T) {
	checker := NewDirChecker("cache_dir", fakeProbe{dir: filepath.Join(t.TempDir(), "missing")})

	result := checker.Check(context.Background())
	if result.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded", result.Status)
	}
	if !errors.Is(result.Error, ErrDirMissing) {
		t.Errorf("Error = %v, want ErrDirMissing", result.Error)
	}
}

func TestDirChecker_UnwritableIsUnhealthy(t *testing.T) {
	probeErr := errors.New("read-only file system")
	checker := NewDirChecker("cache_dir", fakeProbe{dir: t.TempDir(), err: probeErr})

	result := checker.Check(context.Background())
	if result.Status != StatusUnhealthy {
		t.Fatalf("Status = %v, want unhealthy", result.Status)
	}
	if !errors.Is(result.Error, ErrDirUnwritable) || !errors.Is(result.Error, probeErr) {
		t.Errorf("Error = %v", result.Error)
	}
}

func TestDirChecker_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewDirChecker("cache_dir", fakeProbe{dir: t.TempDir()}).Check(ctx)
	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", result.Status)
	}
}
