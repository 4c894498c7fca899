// Package observe provides observability primitives for the page cache.
//
// It is a pure instrumentation library: no caching, no transport, no I/O
// beyond exporter setup. Consumers wire the observer into cache.PageCache
// and the HTTP server.
package observe
