// Package cache provides a full-page output cache.
//
// A PageCache decides per request whether a page may be cached (Eligibility
// over a mutable Rules table), derives a deterministic key for it (Keyer),
// persists rendered output in a Store with per-token masking (Placeholders),
// and substitutes the current request's live token values back in on every
// read and write. Middleware adapts a PageCache to net/http.
package cache
