package cache

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// SkipReason names the rule that made a request not cacheable.
type SkipReason string

// Skip reasons, in evaluation order.
const (
	ReasonNone           SkipReason = ""
	ReasonDisabled       SkipReason = "disabled"
	ReasonSideEffect     SkipReason = "side_effect"
	ReasonBypass         SkipReason = "bypass"
	ReasonExcludedAction SkipReason = "excluded_action"
	ReasonExcludedParam  SkipReason = "excluded_param"
)

// Decision is the outcome of an eligibility check.
type Decision struct {
	Cacheable bool
	Reason    SkipReason

	// Param is the matching parameter for ReasonExcludedParam.
	Param string
}

// Eligibility decides per request whether the cache may be consulted or
// written. Checks run in order and stop at the first match:
//
//  1. global disable
//  2. side-effecting request
//  3. bypass parameter set and truthy
//  4. action excluded for the route
//  5. parameter excluded for the route (presence or value match)
//
// Eligibility is safe for concurrent use.
type Eligibility struct {
	disabled    atomic.Bool
	bypassParam string
	rules       *Rules
}

// NewEligibility creates an Eligibility over rules. A nil rules table is
// replaced by an empty one; an empty bypassParam uses DefaultBypassParam.
func NewEligibility(rules *Rules, bypassParam string, disabled bool) *Eligibility {
	if rules == nil {
		rules = NewRules()
	}
	if bypassParam == "" {
		bypassParam = DefaultBypassParam
	}
	e := &Eligibility{bypassParam: bypassParam, rules: rules}
	e.disabled.Store(disabled)
	return e
}

// SetDisabled toggles the global switch.
func (e *Eligibility) SetDisabled(disabled bool) {
	e.disabled.Store(disabled)
}

// Disabled reports the global switch.
func (e *Eligibility) Disabled() bool {
	return e.disabled.Load()
}

// Rules returns the rule table consulted by Check.
func (e *Eligibility) Rules() *Rules {
	return e.rules
}

// Check evaluates rc against the layered rules.
func (e *Eligibility) Check(rc *RouteContext) Decision {
	if e.disabled.Load() {
		return Decision{Reason: ReasonDisabled}
	}
	if rc.SideEffecting {
		return Decision{Reason: ReasonSideEffect}
	}
	if v, ok := rc.Param(e.bypassParam); ok && truthy(v) {
		return Decision{Reason: ReasonBypass, Param: e.bypassParam}
	}
	if e.rules.ActionExcluded(rc.RouteID, rc.ActionID) {
		return Decision{Reason: ReasonExcludedAction}
	}
	if name, ok := e.rules.matchParam(rc.RouteID, rc.Param); ok {
		return Decision{Reason: ReasonExcludedParam, Param: name}
	}
	return Decision{Cacheable: true}
}

// Cacheable reports whether rc may use the cache.
func (e *Eligibility) Cacheable(rc *RouteContext) bool {
	return e.Check(rc).Cacheable
}

// truthy reports whether a request parameter value counts as set.
// nil, false, "", "0", numeric zero and empty collections are falsy.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && val != "0"
	case []string:
		return len(val) > 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// valueIn reports whether v, or any element of a slice v, is in set.
// Values compare by their fmt.Sprint form.
func valueIn(v any, set map[string]struct{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		_, ok := set[val]
		return ok
	case []string:
		for _, s := range val {
			if _, ok := set[s]; ok {
				return true
			}
		}
		return false
	case []any:
		for _, e := range val {
			if valueIn(e, set) {
				return true
			}
		}
		return false
	}
	_, ok := set[fmt.Sprint(v)]
	return ok
}
