package main

import (
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestPrimaryLanguage(t *testing.T) {
	tests := []struct {
		header, want string
	}{
		{"", ""},
		{"*", ""},
		{"en", "en"},
		{"en-US,en;q=0.9", "en"},
		{"DE-de;q=0.8, en", "de"},
		{" fr ; q=1", "fr"},
	}
	for _, tc := range tests {
		if got := primaryLanguage(tc.header); got != tc.want {
			t.Errorf("primaryLanguage(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestRequestAttributes(t *testing.T) {
	req := httptest.NewRequest("GET", "/site/index", nil)
	req.Header.Set("Accept-Language", "pt-BR")
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone) Mobile/15E148")

	attrs := requestAttributes(req)
	if v, ok := attrs.Attribute(attrLang); !ok || v != "pt" {
		t.Errorf("lang = %q, %v", v, ok)
	}
	if v, _ := attrs.Attribute(attrDevice); v != "mobile" {
		t.Errorf("device = %q, want mobile", v)
	}

	bare := requestAttributes(httptest.NewRequest("GET", "/", nil))
	if _, ok := bare.Attribute(attrLang); ok {
		t.Error("lang should be absent without Accept-Language")
	}
	if v, _ := bare.Attribute(attrDevice); v != "desktop" {
		t.Errorf("device = %q, want desktop", v)
	}
}

func TestUnknownAttributes(t *testing.T) {
	got := unknownAttributes([]string{"lang", "theme", "device", "region"})
	if want := []string{"theme", "region"}; !reflect.DeepEqual(got, want) {
		t.Errorf("unknownAttributes() = %v, want %v", got, want)
	}
	if got := unknownAttributes(nil); got != nil {
		t.Errorf("unknownAttributes(nil) = %v", got)
	}
}
