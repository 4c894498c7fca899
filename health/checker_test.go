package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("Status.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatus_Worse(t *testing.T) {
	if StatusHealthy.Worse(StatusDegraded) != StatusDegraded {
		t.Error("degraded should be worse than healthy")
	}
	if StatusUnhealthy.Worse(StatusDegraded) != StatusUnhealthy {
		t.Error("unhealthy should stay unhealthy")
	}
}

func TestResultConstructors(t *testing.T) {
	testErr := errors.New("test error")

	tests := []struct {
		name   string
		result Result
		want   Status
	}{
		{"healthy", Healthy("ok"), StatusHealthy},
		{"degraded", Degraded("slow"), StatusDegraded},
		{"unhealthy", Unhealthy("down", testErr), StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.result.Status != tt.want {
				t.Errorf("Status = %v, want %v", tt.result.Status, tt.want)
			}
			if tt.result.Timestamp.IsZero() {
				t.Error("Timestamp should not be zero")
			}
		})
	}

	if got := Unhealthy("down", testErr).Error; got != testErr {
		t.Errorf("Error = %v, want %v", got, testErr)
	}
}

func TestResult_WithDetails(t *testing.T) {
	result := Healthy("ok").WithDetails(map[string]any{"dir": "/tmp"})
	if result.Details["dir"] != "/tmp" {
		t.Errorf("Details = %v", result.Details)
	}
}

func TestCheckerFunc(t *testing.T) {
	called := false
	checker := NewCheckerFunc("probe", func(ctx context.Context) Result {
		called = true
		return Healthy("ok")
	})

	if checker.Name() != "probe" {
		t.Errorf("Name() = %v, want 'probe'", checker.Name())
	}
	if result := checker.Check(context.Background()); result.Status != StatusHealthy {
		t.Errorf("Status = %v", result.Status)
	}
	if !called {
		t.Error("function was not called")
	}
}
