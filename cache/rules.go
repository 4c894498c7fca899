package cache

import (
	"sort"
	"sync"
)

// RulesConfig is the serialisable form of a Rules table.
//
// ExcludedParams maps route -> parameter -> matched values. An empty value
// list registers a presence-only rule.
type RulesConfig struct {
	ExcludedActions map[string][]string            `json:"excludedActions,omitempty" koanf:"excludedActions"`
	ExcludedParams  map[string]map[string][]string `json:"excludedParams,omitempty" koanf:"excludedParams"`
}

// paramRule matches a parameter either by presence or by value.
// A rule with presence set ignores values.
type paramRule struct {
	presence bool
	values   map[string]struct{}
}

type routeRules struct {
	actions map[string]struct{}
	params  map[string]*paramRule
}

func (r *routeRules) empty() bool {
	return len(r.actions) == 0 && len(r.params) == 0
}

// Rules holds per-route cache exclusions: excluded actions and excluded
// parameters. All mutations are idempotent.
//
// Merge rule: a presence-only exclusion dominates a value-restricted one for
// the same parameter. ExcludeParams collapses an existing value set;
// ExcludeParamValues and AllowParamValues leave a presence-only rule
// untouched. AllowParams removes either kind.
//
// Rules is safe for concurrent use.
type Rules struct {
	mu     sync.RWMutex
	routes map[string]*routeRules
}

// NewRules creates an empty rule table.
func NewRules() *Rules {
	return &Rules{routes: make(map[string]*routeRules)}
}

// NewRulesFromConfig creates a rule table seeded from cfg.
func NewRulesFromConfig(cfg RulesConfig) *Rules {
	r := NewRules()
	r.Reset(cfg)
	return r
}

// route returns the rules for id, creating them. Caller holds mu.
func (r *Rules) route(id string) *routeRules {
	rr, ok := r.routes[id]
	if !ok {
		rr = &routeRules{
			actions: make(map[string]struct{}),
			params:  make(map[string]*paramRule),
		}
		r.routes[id] = rr
	}
	return rr
}

// prune drops an empty route entry. Caller holds mu.
func (r *Rules) prune(id string) {
	if rr, ok := r.routes[id]; ok && rr.empty() {
		delete(r.routes, id)
	}
}

// ExcludeActions marks actions of route as not cacheable.
func (r *Rules) ExcludeActions(route string, actions ...string) {
	if len(actions) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rr := r.route(route)
	for _, a := range actions {
		rr.actions[a] = struct{}{}
	}
}

// AllowActions removes actions from the route's excluded set.
func (r *Rules) AllowActions(route string, actions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rr, ok := r.routes[route]
	if !ok {
		return
	}
	for _, a := range actions {
		delete(rr.actions, a)
	}
	r.prune(route)
}

// AllowAllActions clears every action exclusion for route.
func (r *Rules) AllowAllActions(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rr, ok := r.routes[route]; ok {
		clear(rr.actions)
		r.prune(route)
	}
}

// ExcludeParams registers presence-only exclusions: a request on route
// carrying a truthy value for any of names is not cacheable.
func (r *Rules) ExcludeParams(route string, names ...string) {
	if len(names) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rr := r.route(route)
	for _, name := range names {
		rr.params[name] = &paramRule{presence: true}
	}
}

// ExcludeParamValues registers value-restricted exclusions: a request on
// route whose parameter value is in the given set is not cacheable. Values
// are unioned into an existing set. Empty value lists are ignored.
func (r *Rules) ExcludeParamValues(route string, values map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rr *routeRules
	for name, list := range values {
		if len(list) == 0 {
			continue
		}
		if rr == nil {
			rr = r.route(route)
		}
		rule, ok := rr.params[name]
		if !ok {
			rule = &paramRule{values: make(map[string]struct{}, len(list))}
			rr.params[name] = rule
		}
		if rule.presence {
			continue
		}
		for _, v := range list {
			rule.values[v] = struct{}{}
		}
	}
}

// AllowParams removes the exclusion rules for names entirely.
func (r *Rules) AllowParams(route string, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rr, ok := r.routes[route]
	if !ok {
		return
	}
	for _, name := range names {
		delete(rr.params, name)
	}
	r.prune(route)
}

// AllowParamValues removes values from value-restricted rules. A rule whose
// value set becomes empty is removed.
func (r *Rules) AllowParamValues(route string, values map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rr, ok := r.routes[route]
	if !ok {
		return
	}
	for name, list := range values {
		rule, ok := rr.params[name]
		if !ok || rule.presence {
			continue
		}
		for _, v := range list {
			delete(rule.values, v)
		}
		if len(rule.values) == 0 {
			delete(rr.params, name)
		}
	}
	r.prune(route)
}

// AllowAllParams clears every parameter exclusion for route.
func (r *Rules) AllowAllParams(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rr, ok := r.routes[route]; ok {
		clear(rr.params)
		r.prune(route)
	}
}

// ClearRoute removes all rules for route.
func (r *Rules) ClearRoute(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.routes, route)
}

// Reset replaces the whole table with cfg.
func (r *Rules) Reset(cfg RulesConfig) {
	next := NewRules()
	for route, actions := range cfg.ExcludedActions {
		next.ExcludeActions(route, actions...)
	}
	for route, params := range cfg.ExcludedParams {
		for name, values := range params {
			if len(values) == 0 {
				next.ExcludeParams(route, name)
				continue
			}
			next.ExcludeParamValues(route, map[string][]string{name: values})
		}
	}

	r.mu.Lock()
	r.routes = next.routes
	r.mu.Unlock()
}

// Snapshot returns a copy of the table. Slices are sorted.
func (r *Rules) Snapshot() RulesConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg := RulesConfig{
		ExcludedActions: make(map[string][]string),
		ExcludedParams:  make(map[string]map[string][]string),
	}
	for route, rr := range r.routes {
		if len(rr.actions) > 0 {
			cfg.ExcludedActions[route] = sortedSet(rr.actions)
		}
		if len(rr.params) > 0 {
			params := make(map[string][]string, len(rr.params))
			for name, rule := range rr.params {
				if rule.presence {
					params[name] = []string{}
					continue
				}
				params[name] = sortedSet(rule.values)
			}
			cfg.ExcludedParams[route] = params
		}
	}
	return cfg
}

// ActionExcluded reports whether action is excluded for route.
func (r *Rules) ActionExcluded(route, action string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rr, ok := r.routes[route]
	if !ok {
		return false
	}
	_, excluded := rr.actions[action]
	return excluded
}

// matchParam returns the first parameter (by name) of route whose rule
// matches the request parameters.
func (r *Rules) matchParam(route string, lookup func(name string) (any, bool)) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rr, ok := r.routes[route]
	if !ok || len(rr.params) == 0 {
		return "", false
	}

	names := make([]string, 0, len(rr.params))
	for name := range rr.params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v, set := lookup(name)
		if !set {
			continue
		}
		rule := rr.params[name]
		if rule.presence {
			if truthy(v) {
				return name, true
			}
			continue
		}
		if valueIn(v, rule.values) {
			return name, true
		}
	}
	return "", false
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
