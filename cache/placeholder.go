package cache

import (
	"bytes"
	"sort"
	"strings"
	"sync"
)

// Marker returns the placeholder marker for name: the name upper-cased,
// stripped of surrounding braces and whitespace, wrapped in braces.
//
//	Marker("csrf_token") == "{CSRF_TOKEN}"
func Marker(name string) string {
	return "{" + normalizeName(name) + "}"
}

func normalizeName(name string) string {
	return strings.ToUpper(strings.Trim(name, "{} \t\r\n"))
}

// Placeholders is a table of named substitution tokens.
//
// Apply replaces each registered marker with its value; Mask does the
// reverse for values that must not be persisted. Replacement order is
// deterministic. Placeholders is safe for concurrent use.
type Placeholders struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewPlaceholders creates an empty table.
func NewPlaceholders() *Placeholders {
	return &Placeholders{values: make(map[string]string)}
}

// Register sets the value for one token.
func (p *Placeholders) Register(name, value string) {
	n := normalizeName(name)
	if n == "" {
		return
	}
	p.mu.Lock()
	p.values[n] = value
	p.mu.Unlock()
}

// RegisterMany sets the values for several tokens.
func (p *Placeholders) RegisterMany(values map[string]string) {
	for name, value := range values {
		p.Register(name, value)
	}
}

// Len returns the number of registered tokens.
func (p *Placeholders) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.values)
}

func (p *Placeholders) sortedNames() []string {
	names := make([]string, 0, len(p.values))
	for n := range p.values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply returns text with every registered marker replaced by its value.
// Unregistered markers are left untouched.
func (p *Placeholders) Apply(text []byte) []byte {
	p.mu.RLock()
	if len(p.values) == 0 {
		p.mu.RUnlock()
		return text
	}
	pairs := make([]string, 0, 2*len(p.values))
	for _, n := range p.sortedNames() {
		pairs = append(pairs, "{"+n+"}", p.values[n])
	}
	p.mu.RUnlock()

	return []byte(strings.NewReplacer(pairs...).Replace(string(text)))
}

// Mask returns a copy of text with every occurrence of a registered,
// non-empty value replaced by its marker. Longer values are masked first.
func (p *Placeholders) Mask(text []byte) []byte {
	p.mu.RLock()
	type pair struct{ name, value string }
	pairs := make([]pair, 0, len(p.values))
	for _, n := range p.sortedNames() {
		if v := p.values[n]; v != "" {
			pairs = append(pairs, pair{n, v})
		}
	}
	p.mu.RUnlock()

	sort.SliceStable(pairs, func(i, j int) bool {
		return len(pairs[i].value) > len(pairs[j].value)
	})

	out := bytes.Clone(text)
	for _, pr := range pairs {
		out = bytes.ReplaceAll(out, []byte(pr.value), []byte("{"+pr.name+"}"))
	}
	return out
}
