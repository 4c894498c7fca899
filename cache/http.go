package cache

import (
	"bytes"
	"net/http"
	"slices"
	"strings"
)

// Response header values set by Middleware.
const (
	HeaderPageCache = "X-Page-Cache"
	StateHit        = "HIT"
	StateMiss       = "MISS"
	StateSkip       = "SKIP"
)

// RouteResolver maps a request to its RouteContext. Returning false leaves
// the request untouched by the cache.
type RouteResolver interface {
	Resolve(r *http.Request) (*RouteContext, bool)
}

// RouteResolverFunc adapts a function to RouteResolver.
type RouteResolverFunc func(r *http.Request) (*RouteContext, bool)

// Resolve calls f(r).
func (f RouteResolverFunc) Resolve(r *http.Request) (*RouteContext, bool) {
	return f(r)
}

// PathResolver derives route and action from the URL path: the last segment
// is the action and everything before it the route. "/site/index" resolves
// to route "site", action "index".
type PathResolver struct {
	// DefaultRoute is used for "/". Empty leaves "/" uncached.
	DefaultRoute string

	// DefaultAction is used when the path has a single segment.
	DefaultAction string

	// Tokens returns live per-reader token values for r. May be nil.
	Tokens func(r *http.Request) map[string]string

	// Attributes returns the attribute source for extra key params. May be nil.
	Attributes func(r *http.Request) AttributeSource

	// Replacements are direct-replace tokens applied to every response.
	Replacements map[string]string

	// Routes, when non-nil, limits resolution to the listed route ids. A
	// route with a non-empty action list also limits its actions. Anything
	// else is left to the next handler and never reaches cache metrics.
	Routes map[string][]string
}

// Resolve implements RouteResolver.
func (p PathResolver) Resolve(r *http.Request) (*RouteContext, bool) {
	path := strings.Trim(r.URL.Path, "/")
	var route, action string
	switch i := strings.LastIndexByte(path, '/'); {
	case path == "":
		route, action = p.DefaultRoute, p.DefaultAction
	case i < 0:
		route, action = path, p.DefaultAction
	default:
		route, action = path[:i], path[i+1:]
	}
	if route == "" || !p.allowed(route, action) {
		return nil, false
	}

	rc := &RouteContext{
		RouteID:       route,
		ActionID:      action,
		SideEffecting: r.Method != http.MethodGet && r.Method != http.MethodHead,
		Params:        flattenQuery(r),
		Replacements:  p.Replacements,
	}
	if p.Tokens != nil {
		rc.Tokens = p.Tokens(r)
	}
	if p.Attributes != nil {
		rc.Attributes = p.Attributes(r)
	}
	return rc, true
}

func (p PathResolver) allowed(route, action string) bool {
	if p.Routes == nil {
		return true
	}
	actions, ok := p.Routes[route]
	if !ok {
		return false
	}
	return len(actions) == 0 || slices.Contains(actions, action)
}

// flattenQuery turns single-valued query parameters into strings and keeps
// repeated ones as []string.
func flattenQuery(r *http.Request) map[string]any {
	q := r.URL.Query()
	params := make(map[string]any, len(q))
	for k, vs := range q {
		if len(vs) == 1 {
			params[k] = vs[0]
			continue
		}
		params[k] = vs
	}
	return params
}

// ErrorHandler responds to a failed cache write.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middleware)

// WithErrorHandler replaces the default 500 response on write failures.
func WithErrorHandler(h ErrorHandler) MiddlewareOption {
	return func(m *middleware) {
		if h != nil {
			m.onError = h
		}
	}
}

type middleware struct {
	pc      *PageCache
	resolve RouteResolver
	onError ErrorHandler
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, _ error) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Middleware serves cached pages and caches rendered ones.
//
// On a hit the stored body is written with X-Page-Cache: HIT and next is
// not called. Otherwise next renders into a buffer; 200 responses go through
// PageCache.Write, anything else is passed through unchanged. HEAD misses
// are never stored.
func Middleware(pc *PageCache, resolve RouteResolver, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	m := &middleware{pc: pc, resolve: resolve, onError: defaultErrorHandler}
	for _, opt := range opts {
		opt(m)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.serve(w, r, next)
		})
	}
}

func (m *middleware) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	rc, ok := m.resolve.Resolve(r)
	if !ok {
		next.ServeHTTP(w, r)
		return
	}
	ctx := r.Context()

	res := m.pc.Lookup(ctx, rc)
	if res.Hit {
		h := w.Header()
		h.Set("Content-Type", "text/html; charset=utf-8")
		h.Set(HeaderPageCache, StateHit)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.Body)
		return
	}

	rec := &pageRecorder{header: w.Header(), status: http.StatusOK}
	next.ServeHTTP(rec, r)

	if rec.status != http.StatusOK || r.Method == http.MethodHead {
		w.WriteHeader(rec.status)
		_, _ = w.Write(rec.body.Bytes())
		return
	}

	body, err := m.pc.Write(ctx, rc, rec.body.Bytes())
	if err != nil {
		w.Header().Del("Content-Length")
		m.onError(w, r, err)
		return
	}

	state := StateSkip
	if res.Decision.Cacheable {
		state = StateMiss
	}
	w.Header().Del("Content-Length")
	w.Header().Set(HeaderPageCache, state)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// pageRecorder buffers a handler response. Headers are shared with the
// real writer; status and body are held back.
type pageRecorder struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *pageRecorder) Header() http.Header { return r.header }

func (r *pageRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
}

func (r *pageRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(b)
}
