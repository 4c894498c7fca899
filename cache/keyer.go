package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Keyer generates deterministic cache keys for a page request.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
// - Output: keys must pass ValidateKey.
type Keyer interface {
	// Key generates a cache key from route identity, ordered extra attribute
	// values and the request parameters.
	Key(routeID, actionID string, extras []string, params any) (string, error)
}

// DefaultKeyer generates SHA-256 based cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
// Format: <route>_<action>_[<extra>_]...<hash>.html
// where hash is the first 32 hex characters of SHA-256(canonical JSON(params)).
// Route, action and extras are escaped so none of them can contain '_'.
// Empty extras are skipped.
func (k *DefaultKeyer) Key(routeID, actionID string, extras []string, params any) (string, error) {
	canonical, err := canonicalize(params)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize params: %w", err)
	}

	hash := sha256.Sum256(canonical)

	var b strings.Builder
	b.WriteString(escapeComponent(routeID))
	b.WriteByte('_')
	b.WriteString(escapeComponent(actionID))
	b.WriteByte('_')
	for _, extra := range extras {
		if extra == "" {
			continue
		}
		b.WriteString(escapeComponent(extra))
		b.WriteByte('_')
	}
	b.WriteString(hex.EncodeToString(hash[:16])) // 128 bits
	b.WriteString(FileSuffix)

	key := b.String()
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

const upperHex = "0123456789ABCDEF"

// escapeComponent keeps ASCII letters, digits and '-' and percent-encodes
// every other byte, including the '_' separator.
func escapeComponent(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if !keepByte(s[i]) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if keepByte(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0f])
	}
	return b.String()
}

func keepByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-'
}

// canonicalize produces a deterministic JSON representation of the params.
// Maps are sorted by key to ensure consistent ordering.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, s := range val {
			m[k] = s
		}
		return canonicalizeMap(m)
	case url.Values:
		return canonicalize(map[string][]string(val))
	case map[string][]string:
		m := make(map[string]any, len(val))
		for k, list := range val {
			m[k] = stringsToAny(list)
		}
		return canonicalizeMap(m)
	case []string:
		return canonicalizeSlice(stringsToAny(val))
	default:
		return json.Marshal(v)
	}
}

func stringsToAny(list []string) []any {
	out := make([]any, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
