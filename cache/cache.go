package cache

import (
	"context"
	"errors"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key. Keys become file
// names, so this stays within common filesystem limits.
const MaxKeyLength = 255

// Sentinel errors for cache operations.
var (
	ErrNilStore          = errors.New("cache: store is nil")
	ErrInvalidKey        = errors.New("cache: key is invalid")
	ErrKeyTooLong        = errors.New("cache: key exceeds max length")
	ErrStorageUnwritable = errors.New("cache: storage unwritable")
)

// Store persists rendered pages keyed by cache key.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Freshness: Fetch reports a miss for entries older than the store lifetime;
// stale entries are not removed by Fetch.
// - Errors: Fetch never errors; unreadable entries are misses. Put returns an
// error wrapping ErrStorageUnwritable when the entry cannot be persisted.
type Store interface {
	// Fetch returns the stored body. Returns (nil, false) on miss.
	Fetch(ctx context.Context, key string) ([]byte, bool)

	// Put stores body under key, replacing any existing entry and resetting
	// its freshness.
	Put(ctx context.Context, key string, body []byte) error

	// Clear removes every entry regardless of freshness.
	Clear(ctx context.Context) error
}

// ValidateKey checks if a key is usable as a store entry name.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "/\\\x00\n\r") || strings.HasPrefix(key, ".") {
		return ErrInvalidKey
	}
	return nil
}
