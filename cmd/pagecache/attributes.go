package main

import (
	"net/http"
	"slices"
	"strings"

	"github.com/jonwraymond/pagecache/cache"
)

// Attribute names available to cache.extraParams.
const (
	attrLang   = "lang"
	attrDevice = "device"
)

var knownAttributes = []string{attrLang, attrDevice}

// requestAttributes exposes the request's primary Accept-Language tag as
// "lang" and a coarse "device" class (mobile or desktop).
func requestAttributes(r *http.Request) cache.AttributeSource {
	attrs := cache.AttributeMap{attrDevice: "desktop"}
	if lang := primaryLanguage(r.Header.Get("Accept-Language")); lang != "" {
		attrs[attrLang] = lang
	}
	if strings.Contains(r.UserAgent(), "Mobile") {
		attrs[attrDevice] = "mobile"
	}
	return attrs
}

// primaryLanguage returns the lowercased primary subtag of the first
// language range, or "" for none or "*".
func primaryLanguage(header string) string {
	first, _, _ := strings.Cut(header, ",")
	first, _, _ = strings.Cut(first, ";")
	first, _, _ = strings.Cut(strings.TrimSpace(first), "-")
	if first == "*" {
		return ""
	}
	return strings.ToLower(first)
}

// unknownAttributes returns the extraParams names requestAttributes never
// sets.
func unknownAttributes(names []string) []string {
	var out []string
	for _, n := range names {
		if !slices.Contains(knownAttributes, n) {
			out = append(out, n)
		}
	}
	return out
}
