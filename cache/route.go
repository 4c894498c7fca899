package cache

import "github.com/jonwraymond/pagecache/observe"

// AttributeSource exposes named attributes of the active handler. It is how
// configured extra key parameters are resolved.
type AttributeSource interface {
	Attribute(name string) (string, bool)
}

// AttributeMap is an AttributeSource backed by a map.
type AttributeMap map[string]string

// Attribute returns the named attribute.
func (m AttributeMap) Attribute(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// RouteContext describes one request at the framework boundary.
// It is treated as immutable once handed to a PageCache.
type RouteContext struct {
	RouteID  string
	ActionID string

	// SideEffecting reports a request method that implies side effects.
	SideEffecting bool

	// Params is the full request parameter set.
	Params map[string]any

	// Attributes resolves extra key parameters. May be nil.
	Attributes AttributeSource

	// Tokens holds live values of per-reader tokens. They are masked in the
	// stored copy and substituted back on every read and write. Values must
	// be at least MinTokenLength bytes; a shorter one makes the request
	// skip the cache with ReasonShortToken.
	Tokens map[string]string

	// Replacements holds direct-replace tokens applied to output only.
	Replacements map[string]string
}

// Param returns the named request parameter.
func (rc *RouteContext) Param(name string) (any, bool) {
	if rc.Params == nil {
		return nil, false
	}
	v, ok := rc.Params[name]
	return v, ok
}

// Extras resolves the named attributes in order, skipping empty values.
func (rc *RouteContext) Extras(names []string) []string {
	if rc.Attributes == nil || len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		if v, ok := rc.Attributes.Attribute(name); ok && v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (rc *RouteContext) meta(key string) observe.RouteMeta {
	return observe.RouteMeta{RouteID: rc.RouteID, ActionID: rc.ActionID, Key: key}
}
