package cache

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func tokenFromHeader(r *http.Request) map[string]string {
	return map[string]string{"CSRF_TOKEN": r.Header.Get("X-Test-Token")}
}

func newSiteHandler(calls *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/site/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(renderIndex(r.Header.Get("X-Test-Token")))
	})
}

func doRequest(t *testing.T, h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("X-Test-Token", token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPathResolver(t *testing.T) {
	p := PathResolver{DefaultRoute: "site", DefaultAction: "index"}

	tests := []struct {
		method, target string
		route, action  string
		sideEffect     bool
		ok             bool
	}{
		{"GET", "/site/index", "site", "index", false, true},
		{"GET", "/", "site", "index", false, true},
		{"GET", "/blog", "blog", "index", false, true},
		{"GET", "/admin/users/list", "admin/users", "list", false, true},
		{"POST", "/site/contact", "site", "contact", true, true},
		{"HEAD", "/site/index", "site", "index", false, true},
	}
	for _, tc := range tests {
		rc, ok := p.Resolve(httptest.NewRequest(tc.method, tc.target, nil))
		if ok != tc.ok {
			t.Fatalf("%s %s: ok = %v", tc.method, tc.target, ok)
		}
		if rc.RouteID != tc.route || rc.ActionID != tc.action || rc.SideEffecting != tc.sideEffect {
			t.Errorf("%s %s: got %+v", tc.method, tc.target, rc)
		}
	}

	if _, ok := (PathResolver{}).Resolve(httptest.NewRequest("GET", "/", nil)); ok {
		t.Error("root without a default route should not resolve")
	}
}

func TestPathResolver_Routes(t *testing.T) {
	p := PathResolver{
		DefaultRoute:  "site",
		DefaultAction: "index",
		Routes:        map[string][]string{"site": {"index", "about"}, "blog": nil},
	}

	tests := []struct {
		target string
		ok     bool
	}{
		{"/", true},
		{"/site/index", true},
		{"/site/about", true},
		{"/site/wp-login.php", false},
		{"/blog/any-post", true},
		{"/admin/users/list", false},
		{"/random-1234", false},
	}
	for _, tc := range tests {
		if _, ok := p.Resolve(httptest.NewRequest("GET", tc.target, nil)); ok != tc.ok {
			t.Errorf("%s: ok = %v, want %v", tc.target, ok, tc.ok)
		}
	}
}

func TestPathResolver_Params(t *testing.T) {
	rc, _ := PathResolver{}.Resolve(httptest.NewRequest("GET", "/site/search?q=go&tag=a&tag=b", nil))

	if rc.Params["q"] != "go" {
		t.Errorf("q = %#v", rc.Params["q"])
	}
	tags, ok := rc.Params["tag"].([]string)
	if !ok || len(tags) != 2 {
		t.Errorf("tag = %#v", rc.Params["tag"])
	}
}

func TestMiddleware_EndToEnd(t *testing.T) {
	pc, _ := newTestCache(t)
	var calls atomic.Int32
	h := Middleware(pc, PathResolver{Tokens: tokenFromHeader})(newSiteHandler(&calls))

	first := doRequest(t, h, "GET", "/site/index", "live-0001")
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d", first.Code)
	}
	if got := first.Header().Get(HeaderPageCache); got != StateMiss {
		t.Errorf("%s = %q, want %q", HeaderPageCache, got, StateMiss)
	}
	if !strings.Contains(first.Body.String(), `value="live-0001"`) || strings.Contains(first.Body.String(), "{CSRF_TOKEN}") {
		t.Errorf("first response: %s", first.Body.String())
	}

	second := doRequest(t, h, "GET", "/site/index", "live-0002")
	if got := second.Header().Get(HeaderPageCache); got != StateHit {
		t.Errorf("%s = %q, want %q", HeaderPageCache, got, StateHit)
	}
	if !strings.Contains(second.Body.String(), `value="live-0002"`) {
		t.Errorf("hit must carry the current token: %s", second.Body.String())
	}
	if calls.Load() != 1 {
		t.Errorf("handler calls = %d, want 1", calls.Load())
	}
}

func TestMiddleware_PassThrough(t *testing.T) {
	pc, store := newTestCache(t)
	var calls atomic.Int32
	h := Middleware(pc, PathResolver{Tokens: tokenFromHeader})(newSiteHandler(&calls))

	notFound := doRequest(t, h, "GET", "/site/missing", "tok-0000")
	if notFound.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", notFound.Code)
	}

	post := doRequest(t, h, "POST", "/site/index", "tok-0000")
	if got := post.Header().Get(HeaderPageCache); got != StateSkip {
		t.Errorf("POST %s = %q, want %q", HeaderPageCache, got, StateSkip)
	}

	head := doRequest(t, h, "HEAD", "/site/index", "tok-0000")
	if head.Code != http.StatusOK {
		t.Errorf("HEAD status = %d", head.Code)
	}

	bypass := doRequest(t, h, "GET", "/site/index?"+DefaultBypassParam+"=1", "tok-0000")
	if got := bypass.Header().Get(HeaderPageCache); got != StateSkip {
		t.Errorf("bypass %s = %q", HeaderPageCache, got)
	}

	if store.Len() != 0 {
		t.Errorf("nothing should have been stored, got %d entries", store.Len())
	}
}

func TestMiddleware_UnresolvedRequest(t *testing.T) {
	pc, store := newTestCache(t)
	var calls atomic.Int32
	h := Middleware(pc, PathResolver{})(newSiteHandler(&calls))

	rec := doRequest(t, h, "GET", "/", "tok-0000")
	if rec.Header().Get(HeaderPageCache) != "" {
		t.Error("unresolved request should not be touched")
	}
	if store.Len() != 0 {
		t.Error("unresolved request should not be stored")
	}
}

func TestMiddleware_WriteFailure(t *testing.T) {
	pc, err := New(DefaultConfig(), failingStore{})
	if err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	var handled error
	h := Middleware(pc, PathResolver{Tokens: tokenFromHeader}, WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		handled = err
		w.WriteHeader(http.StatusServiceUnavailable)
	}))(newSiteHandler(&calls))

	rec := doRequest(t, h, "GET", "/site/index", "tok-0000")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
	if !errors.Is(handled, ErrStorageUnwritable) {
		t.Errorf("error handler got %v", handled)
	}
}

func TestMiddleware_DefaultWriteFailureIs500(t *testing.T) {
	pc, err := New(DefaultConfig(), failingStore{})
	if err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	h := Middleware(pc, PathResolver{Tokens: tokenFromHeader})(newSiteHandler(&calls))

	if rec := doRequest(t, h, "GET", "/site/index", "tok-0000"); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestMiddleware_UnlistedRouteRecordsNothing(t *testing.T) {
	metrics := &recordingMetrics{}
	pc, store := newTestCache(t, WithMetrics(metrics))
	var calls atomic.Int32
	resolver := PathResolver{Tokens: tokenFromHeader, Routes: map[string][]string{"site": {"index"}}}
	h := Middleware(pc, resolver)(newSiteHandler(&calls))

	for _, target := range []string{"/scan/a1b2c3", "/site/missing", "/x/y/z"} {
		rec := doRequest(t, h, "GET", target, "tok-0000")
		if rec.Header().Get(HeaderPageCache) != "" {
			t.Errorf("%s: unlisted route should not be touched", target)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("handler calls = %d, want 3", calls.Load())
	}
	if len(metrics.outcomes) != 0 || store.Len() != 0 {
		t.Errorf("unlisted routes recorded %v and stored %d entries", metrics.outcomes, store.Len())
	}

	doRequest(t, h, "GET", "/site/index", "tok-0000")
	if strings.Join(metrics.outcomes, ",") != "miss" {
		t.Errorf("outcomes = %v, want [miss]", metrics.outcomes)
	}
}

func TestMiddleware_FileStore(t *testing.T) {
	store := NewFileStore(t.TempDir(), time.Hour)
	pc, err := New(DefaultConfig(), store)
	if err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	h := Middleware(pc, PathResolver{Tokens: tokenFromHeader})(newSiteHandler(&calls))

	doRequest(t, h, "GET", "/site/about?x=1", "reader-one")
	rec := doRequest(t, h, "GET", "/site/about?x=1", "reader-two")
	if rec.Header().Get(HeaderPageCache) != StateHit || !strings.Contains(rec.Body.String(), `value="reader-two"`) {
		t.Errorf("file-backed hit failed: %v %s", rec.Header(), rec.Body.String())
	}
	other := doRequest(t, h, "GET", "/site/about?x=2", "reader-two")
	if other.Header().Get(HeaderPageCache) != StateMiss {
		t.Error("different params should miss")
	}
}
