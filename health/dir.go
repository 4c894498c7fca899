package health

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// DirProbe is a directory-backed store that can verify it is writable.
// cache.FileStore implements it.
type DirProbe interface {
	Dir() string
	Check(ctx context.Context) error
}

// DirChecker reports the state of a cache directory.
//
// A missing directory is degraded, an unwritable one unhealthy.
type DirChecker struct {
	name  string
	probe DirProbe
}

// NewDirChecker creates a DirChecker.
func NewDirChecker(name string, probe DirProbe) *DirChecker {
	return &DirChecker{name: name, probe: probe}
}

// Name returns the name of this checker.
func (c *DirChecker) Name() string { return c.name }

// Check stats the directory and runs the store's write probe.
func (c *DirChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	dir := c.probe.Dir()
	details := map[string]any{"dir": dir}

	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r := Degraded("cache directory not created yet").WithDetails(details)
		r.Error = ErrDirMissing
		return r
	case err != nil:
		return Unhealthy("cache directory unreadable", fmt.Errorf("%w: %w", ErrCheckFailed, err)).WithDetails(details)
	}
	details["entries"] = len(entries)

	if err := c.probe.Check(ctx); err != nil {
		return Unhealthy("cache directory not writable", fmt.Errorf("%w: %w: %w", ErrCheckFailed, ErrDirUnwritable, err)).WithDetails(details)
	}
	return Healthy("cache directory writable").WithDetails(details)
}
