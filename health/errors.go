package health

import "errors"

var (
	// ErrCheckFailed indicates a health check failed.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout indicates a health check timed out.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates no checker is registered under a name.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrDirMissing is attached to the degraded result for a cache
	// directory that does not exist yet.
	ErrDirMissing = errors.New("health: directory missing")

	// ErrDirUnwritable wraps a failed write probe.
	ErrDirUnwritable = errors.New("health: directory not writable")
)
