package config

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnvStrict_MissingVarErrors(t *testing.T) {
	t.Setenv("PRESENT", "ok")

	_, err := ExpandEnvStrict("a=${PRESENT} b=${MISSING_B} c=${MISSING_A} d=${MISSING_B}")
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("ExpandEnvStrict() error = %v, want ErrMissingEnv", err)
	}
	if !strings.HasSuffix(err.Error(), "MISSING_A, MISSING_B") {
		t.Fatalf("expected sorted, de-duplicated names in error, got: %v", err)
	}
}

func TestExpandEnvStrict_DollarEscape(t *testing.T) {
	t.Setenv("X", "y")

	out, err := ExpandEnvStrict("$$${X}")
	if err != nil {
		t.Fatalf("ExpandEnvStrict() error = %v", err)
	}
	if out != "$y" {
		t.Fatalf("ExpandEnvStrict() = %q, want %q", out, "$y")
	}
}

func TestExpandEnvStrict_NoReferences(t *testing.T) {
	in := "cache:\n  folder: html_cache\n"
	out, err := ExpandEnvStrict(in)
	if err != nil {
		t.Fatalf("ExpandEnvStrict() error = %v", err)
	}
	if out != in {
		t.Fatalf("ExpandEnvStrict() = %q, want input unchanged", out)
	}
}
