package config

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/jonwraymond/pagecache/cache"
	"github.com/jonwraymond/pagecache/csrf"
	"github.com/jonwraymond/pagecache/observe"
)

// Format is a configuration file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// File is the decoded configuration file.
type File struct {
	Server  Server         `koanf:"server"`
	Cache   Cache          `koanf:"cache"`
	CSRF    CSRF           `koanf:"csrf"`
	Observe observe.Config `koanf:"observe"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string `koanf:"addr"`
	ShutdownTimeout int    `koanf:"shutdownTimeout"` // seconds
}

// Cache configures the page cache and its exclusion rules.
type Cache struct {
	Root            string                         `koanf:"root"`
	Folder          string                         `koanf:"folder"`
	LifeTime        int                            `koanf:"lifeTime"` // seconds
	ExtraParams     []string                       `koanf:"extraParams"`
	Disabled        bool                           `koanf:"disabled"`
	BypassParam     string                         `koanf:"bypassParam"`
	HitFooter       string                         `koanf:"hitFooter"`
	DirMode         string                         `koanf:"dirMode"`  // octal, e.g. "0755"
	FileMode        string                         `koanf:"fileMode"` // octal, e.g. "0644"
	ExcludedActions map[string][]string            `koanf:"excludedActions"`
	ExcludedParams  map[string]map[string][]string `koanf:"excludedParams"`
}

// CSRF configures anti-forgery tokens.
type CSRF struct {
	Secret     string `koanf:"secret"`
	CookieName string `koanf:"cookieName"`
	FieldName  string `koanf:"fieldName"`
	HeaderName string `koanf:"headerName"`
	TTL        int    `koanf:"ttl"` // seconds
	Issuer     string `koanf:"issuer"`
	Secure     bool   `koanf:"secure"`
}

// Default returns the configuration used for keys absent from the file.
func Default() File {
	return File{
		Server: Server{Addr: ":8080", ShutdownTimeout: 10},
		Cache: Cache{
			Root:        ".",
			Folder:      cache.DefaultFolder,
			LifeTime:    int(cache.DefaultLifetime / time.Second),
			BypassParam: cache.DefaultBypassParam,
			DirMode:     "0755",
			FileMode:    "0644",
		},
		CSRF: CSRF{
			CookieName: "pagecache_session",
			FieldName:  "_csrf",
			HeaderName: "X-CSRF-Token",
			TTL:        int((24 * time.Hour) / time.Second),
			Issuer:     "pagecache",
		},
		Observe: observe.Config{
			ServiceName: "pagecache",
			Tracing:     observe.TracingConfig{Exporter: "none", SamplePct: 1},
			Metrics:     observe.MetricsConfig{Exporter: "none"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// Load reads and decodes the file at path. The format follows the extension.
func Load(path string) (File, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return File{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return Parse(data, format)
}

// Parse decodes data over Default, resolves secretref values with
// DefaultSecrets and validates the result.
func Parse(data []byte, format Format) (File, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return File{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	expanded, err := ExpandEnvStrict(string(data))
	if err != nil {
		return File{}, err
	}

	f := Default()
	k := koanf.New(".")
	if len(strings.TrimSpace(expanded)) > 0 {
		if err := k.Load(rawbytes.Provider([]byte(expanded)), parser); err != nil {
			return File{}, fmt.Errorf("%w: %w", ErrParse, err)
		}
	}
	if err := k.UnmarshalWithConf("", &f, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if err := f.ResolveSecrets(context.Background(), DefaultSecrets()); err != nil {
		return File{}, err
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// DetectFormat maps a file extension to a Format.
func DetectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

// Validate reports the first out-of-range value.
func (f *File) Validate() error {
	if f.Cache.LifeTime < 0 {
		return fmt.Errorf("%w: cache.lifeTime must not be negative", ErrInvalid)
	}
	if _, _, err := f.Cache.Modes(); err != nil {
		return err
	}
	if f.CSRF.TTL < 0 {
		return fmt.Errorf("%w: csrf.ttl must not be negative", ErrInvalid)
	}
	if f.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: server.shutdownTimeout must not be negative", ErrInvalid)
	}
	if err := f.Observe.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Config returns the cache settings as a cache.Config.
func (c Cache) Config() cache.Config {
	return cache.Config{
		Folder:      c.Folder,
		Lifetime:    time.Duration(c.LifeTime) * time.Second,
		ExtraParams: append([]string(nil), c.ExtraParams...),
		Disabled:    c.Disabled,
		BypassParam: c.BypassParam,
		HitFooter:   c.HitFooter,
	}
}

// Rules returns the exclusion rule tables.
func (c Cache) Rules() cache.RulesConfig {
	return cache.RulesConfig{
		ExcludedActions: c.ExcludedActions,
		ExcludedParams:  c.ExcludedParams,
	}
}

// Dir returns the cache directory, Root joined with Folder.
func (c Cache) Dir() string {
	folder := c.Folder
	if folder == "" {
		folder = cache.DefaultFolder
	}
	return filepath.Join(c.Root, folder)
}

// Modes parses DirMode and FileMode. Empty values fall back to the store
// defaults.
func (c Cache) Modes() (dir, file fs.FileMode, err error) {
	dir, err = parseMode("cache.dirMode", c.DirMode, cache.DefaultDirMode)
	if err != nil {
		return 0, 0, err
	}
	file, err = parseMode("cache.fileMode", c.FileMode, cache.DefaultFileMode)
	if err != nil {
		return 0, 0, err
	}
	return dir, file, nil
}

func parseMode(field, s string, def fs.FileMode) (fs.FileMode, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0o"), 8, 32)
	if err != nil || v > 0o777 {
		return 0, fmt.Errorf("%w: %s %q is not an octal permission", ErrInvalid, field, s)
	}
	return fs.FileMode(v), nil
}

// Config returns the csrf settings as a csrf.Config.
func (c CSRF) Config() csrf.Config {
	return csrf.Config{
		Secret:     c.Secret,
		CookieName: c.CookieName,
		FieldName:  c.FieldName,
		HeaderName: c.HeaderName,
		TTL:        time.Duration(c.TTL) * time.Second,
		Issuer:     c.Issuer,
		Secure:     c.Secure,
	}
}
