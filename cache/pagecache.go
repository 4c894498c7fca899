package cache

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/pagecache/observe"
)

// ReasonInvalidKey is reported when no valid key could be derived for an
// otherwise cacheable request.
const ReasonInvalidKey SkipReason = "invalid_key"

// ReasonShortToken is reported when a live token is shorter than
// MinTokenLength. Masking such a value would rewrite unrelated markup.
const ReasonShortToken SkipReason = "short_token"

// MinTokenLength is the shortest token value the cache will mask.
const MinTokenLength = 8

// ErrNilRender is returned by Serve when no render function is given.
var ErrNilRender = errors.New("cache: render func is nil")

// RenderFunc renders the current page.
type RenderFunc func(ctx context.Context) ([]byte, error)

// Result is the outcome of a cache lookup or Serve call.
type Result struct {
	// Body is the response body with live token values substituted.
	// Empty on a lookup miss.
	Body []byte

	// Hit reports that Body was served from the store.
	Hit bool

	// Key is the cache key. Empty when the request was not cacheable.
	Key string

	// Decision is the eligibility outcome.
	Decision Decision
}

// PageCache composes eligibility, key derivation, storage and token
// substitution into the read and write paths of a page request.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: Read never errors; Write and Serve propagate store failures
//     (ErrStorageUnwritable) together with the substituted body.
//   - Tokens: stored bytes never contain live RouteContext.Tokens values.
type PageCache struct {
	cfg         Config
	store       Store
	keyer       Keyer
	eligibility *Eligibility

	tracer  observe.Tracer
	metrics observe.Metrics
	logger  observe.Logger
	render  *observe.Middleware

	group singleflight.Group
}

// Option configures a PageCache.
type Option func(*pageCacheOptions)

type pageCacheOptions struct {
	keyer   Keyer
	rules   *Rules
	tracer  observe.Tracer
	metrics observe.Metrics
	logger  observe.Logger
}

// WithKeyer replaces the DefaultKeyer.
func WithKeyer(k Keyer) Option {
	return func(o *pageCacheOptions) { o.keyer = k }
}

// WithRules sets the exclusion table. Without it the cache owns an empty one.
func WithRules(r *Rules) Option {
	return func(o *pageCacheOptions) { o.rules = r }
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(o *pageCacheOptions) { o.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observe.Metrics) Option {
	return func(o *pageCacheOptions) { o.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t observe.Tracer) Option {
	return func(o *pageCacheOptions) { o.tracer = t }
}

// WithObserveMiddleware takes tracer, metrics and logger from mw.
func WithObserveMiddleware(mw *observe.Middleware) Option {
	return func(o *pageCacheOptions) {
		if mw == nil {
			return
		}
		o.tracer = mw.Tracer()
		o.metrics = mw.Metrics()
		o.logger = mw.Logger()
	}
}

// New creates a PageCache over store.
func New(cfg Config, store Store, opts ...Option) (*PageCache, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o pageCacheOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.keyer == nil {
		o.keyer = NewDefaultKeyer()
	}
	if o.rules == nil {
		o.rules = NewRules()
	}

	mw := observe.NewMiddleware(o.tracer, o.metrics, o.logger)
	return &PageCache{
		cfg:         cfg,
		store:       store,
		keyer:       o.keyer,
		eligibility: NewEligibility(o.rules, cfg.BypassParam, cfg.Disabled),
		tracer:      mw.Tracer(),
		metrics:     mw.Metrics(),
		logger:      mw.Logger(),
		render:      mw,
	}, nil
}

// Config returns the configuration the cache was built with.
func (c *PageCache) Config() Config { return c.cfg }

// Rules returns the exclusion table for mutation.
func (c *PageCache) Rules() *Rules { return c.eligibility.Rules() }

// Eligibility returns the eligibility policy.
func (c *PageCache) Eligibility() *Eligibility { return c.eligibility }

// Store returns the underlying store.
func (c *PageCache) Store() Store { return c.store }

// Key derives the cache key for rc.
func (c *PageCache) Key(rc *RouteContext) (string, error) {
	return c.keyer.Key(rc.RouteID, rc.ActionID, rc.Extras(c.cfg.ExtraParams), rc.Params)
}

// Lookup runs the read path: eligibility, key, fetch and substitution.
func (c *PageCache) Lookup(ctx context.Context, rc *RouteContext) Result {
	ctx, span := c.tracer.StartSpan(ctx, observe.OpRead, rc.meta(""))
	res := c.lookup(ctx, rc)
	c.tracer.EndSpan(span, nil)
	return res
}

func (c *PageCache) lookup(ctx context.Context, rc *RouteContext) Result {
	decision, key := c.admit(ctx, rc)
	if !decision.Cacheable {
		c.metrics.RecordLookup(ctx, rc.meta(""), observe.OutcomeSkip, string(decision.Reason))
		return Result{Decision: decision}
	}

	meta := rc.meta(key)
	raw, ok := c.store.Fetch(ctx, key)
	if !ok {
		c.metrics.RecordLookup(ctx, meta, observe.OutcomeMiss, "")
		c.logger.WithRoute(meta).Debug(ctx, "page cache miss")
		return Result{Key: key, Decision: decision}
	}

	body := c.substitute(rc, raw)
	if c.cfg.HitFooter != "" {
		body = append(body, c.cfg.HitFooter...)
	}
	c.metrics.RecordLookup(ctx, meta, observe.OutcomeHit, "")
	c.logger.WithRoute(meta).Debug(ctx, "page cache hit", observe.Field{Key: "bytes", Value: len(body)})
	return Result{Body: body, Hit: true, Key: key, Decision: decision}
}

// admit checks eligibility and derives the key. A short token or a key
// failure turns the decision into a skip.
func (c *PageCache) admit(ctx context.Context, rc *RouteContext) (Decision, string) {
	decision := c.eligibility.Check(rc)
	if !decision.Cacheable {
		c.logger.WithRoute(rc.meta("")).Debug(ctx, "page cache skipped",
			observe.Field{Key: "reason", Value: string(decision.Reason)},
		)
		return decision, ""
	}
	if name, ok := shortToken(rc.Tokens); ok {
		c.logger.WithRoute(rc.meta("")).Warn(ctx, "page cache token too short to mask",
			observe.Field{Key: "token_name", Value: name},
			observe.Field{Key: "min_length", Value: MinTokenLength},
		)
		return Decision{Reason: ReasonShortToken}, ""
	}
	key, err := c.Key(rc)
	if err != nil {
		c.logger.WithRoute(rc.meta("")).Warn(ctx, "page cache key rejected", observe.Field{Key: "error", Value: err})
		return Decision{Reason: ReasonInvalidKey}, ""
	}
	return decision, key
}

// shortToken reports the name of a non-empty token value shorter than
// MinTokenLength.
func shortToken(tokens map[string]string) (string, bool) {
	for name, v := range tokens {
		if v != "" && len(v) < MinTokenLength {
			return name, true
		}
	}
	return "", false
}

// Read returns the substituted cached body for rc, if any. On a hit the
// caller writes the body and stops handling the request.
func (c *PageCache) Read(ctx context.Context, rc *RouteContext) ([]byte, bool) {
	res := c.Lookup(ctx, rc)
	return res.Body, res.Hit
}

// Write runs the write path for freshly rendered output. When rc is
// cacheable a token-masked copy is persisted. The returned body always has
// live tokens and replacements applied, also when the store fails.
func (c *PageCache) Write(ctx context.Context, rc *RouteContext, rendered []byte) ([]byte, error) {
	decision, key := c.admit(ctx, rc)
	if !decision.Cacheable {
		return c.substitute(rc, rendered), nil
	}
	err := c.persist(ctx, rc, key, c.mask(rc, rendered))
	return c.substitute(rc, rendered), err
}

func (c *PageCache) persist(ctx context.Context, rc *RouteContext, key string, masked []byte) error {
	meta := rc.meta(key)
	ctx, span := c.tracer.StartSpan(ctx, observe.OpWrite, meta)
	err := c.store.Put(ctx, key, masked)
	c.tracer.EndSpan(span, err)
	c.metrics.RecordWrite(ctx, meta, len(masked), err)
	if err != nil {
		c.logger.WithRoute(meta).Error(ctx, "page cache write failed", observe.Field{Key: "error", Value: err})
		return err
	}
	c.logger.WithRoute(meta).Debug(ctx, "page cached", observe.Field{Key: "bytes", Value: len(masked)})
	return nil
}

// flight is what one singleflight leader hands to every caller.
type flight struct {
	masked []byte
	putErr error
}

// Serve serves rc from the cache or renders, stores and returns it.
// Concurrent misses on one key render once; each caller then receives the
// stored copy with its own live tokens applied. Render errors are returned
// and never stored.
func (c *PageCache) Serve(ctx context.Context, rc *RouteContext, render RenderFunc) (Result, error) {
	if render == nil {
		return Result{}, ErrNilRender
	}
	res := c.Lookup(ctx, rc)
	if res.Hit {
		return res, nil
	}

	renderPage := c.render.WrapRender(func(ctx context.Context, _ observe.RouteMeta) ([]byte, error) {
		return render(ctx)
	})

	if !res.Decision.Cacheable {
		body, err := renderPage(ctx, rc.meta(""))
		if err != nil {
			return res, err
		}
		res.Body = c.substitute(rc, body)
		return res, nil
	}

	v, err, _ := c.group.Do(res.Key, func() (any, error) {
		body, err := renderPage(ctx, rc.meta(res.Key))
		if err != nil {
			return nil, err
		}
		masked := c.mask(rc, body)
		return flight{masked: masked, putErr: c.persist(ctx, rc, res.Key, masked)}, nil
	})
	if err != nil {
		return res, err
	}
	f := v.(flight)
	res.Body = c.substitute(rc, f.masked)
	return res, f.putErr
}

// Clear removes every cached page.
func (c *PageCache) Clear(ctx context.Context) error {
	ctx, span := c.tracer.StartSpan(ctx, observe.OpClear, observe.RouteMeta{})
	err := c.store.Clear(ctx)
	c.tracer.EndSpan(span, err)
	if err != nil {
		c.logger.Error(ctx, "page cache clear failed", observe.Field{Key: "error", Value: err})
		return err
	}
	c.logger.Info(ctx, "page cache cleared")
	return nil
}

// mask replaces live token values in rendered with their markers.
func (c *PageCache) mask(rc *RouteContext, rendered []byte) []byte {
	p := NewPlaceholders()
	p.RegisterMany(rc.Tokens)
	return p.Mask(rendered)
}

// substitute applies direct replacements and live tokens to body.
func (c *PageCache) substitute(rc *RouteContext, body []byte) []byte {
	p := NewPlaceholders()
	p.RegisterMany(rc.Replacements)
	p.RegisterMany(rc.Tokens)
	return p.Apply(body)
}
