package cache

import (
	"errors"
	"time"
)

// Defaults applied by DefaultConfig.
const (
	DefaultFolder      = "html_cache"
	DefaultLifetime    = 51300 * time.Second
	DefaultBypassParam = "disallowHtmlCache"
	FileSuffix         = ".html"
)

// Config configures a PageCache.
type Config struct {
	// Folder is the cache subdirectory under the asset root.
	Folder string

	// Lifetime is how long an entry stays fresh after its last write.
	Lifetime time.Duration

	// ExtraParams names handler attributes included in the key, in order.
	ExtraParams []string

	// Disabled turns the cache off entirely.
	Disabled bool

	// BypassParam is the request parameter that forces a cache skip when set.
	BypassParam string

	// HitFooter, when non-empty, is appended to bodies served from cache.
	HitFooter string
}

// DefaultConfig returns the default cache configuration.
// Folder: html_cache, Lifetime: 51300s, BypassParam: disallowHtmlCache
func DefaultConfig() Config {
	return Config{
		Folder:      DefaultFolder,
		Lifetime:    DefaultLifetime,
		BypassParam: DefaultBypassParam,
	}
}

// Validate checks the configuration and fills empty fields with defaults.
func (c *Config) Validate() error {
	if c.Lifetime < 0 {
		return errors.New("cache: lifetime must not be negative")
	}
	if c.Folder == "" {
		c.Folder = DefaultFolder
	}
	if c.Lifetime == 0 {
		c.Lifetime = DefaultLifetime
	}
	if c.BypassParam == "" {
		c.BypassParam = DefaultBypassParam
	}
	return nil
}
