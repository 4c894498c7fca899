package csrf

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func echoToken() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _ := TokenFromContext(r.Context())
		_, _ = w.Write([]byte(token))
	})
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestMiddleware_IssuesSessionAndToken(t *testing.T) {
	iss := newTestIssuer(t, Config{})
	h := Middleware(iss, nil)(echoToken())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/site/index", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	c := sessionCookie(t, rec, "pagecache_session")
	if c == nil {
		t.Fatal("session cookie not set")
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		t.Errorf("session cookie %q is not a uuid", c.Value)
	}
	if !c.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if err := iss.Validate(rec.Body.String(), c.Value); err != nil {
		t.Errorf("token in context does not validate: %v", err)
	}
}

func TestMiddleware_ReusesSession(t *testing.T) {
	iss := newTestIssuer(t, Config{})
	h := Middleware(iss, nil)(echoToken())
	session := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "pagecache_session", Value: session})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if c := sessionCookie(t, rec, "pagecache_session"); c != nil {
		t.Errorf("unexpected new cookie %q", c.Value)
	}
	if err := iss.Validate(rec.Body.String(), session); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestMiddleware_ReplacesMalformedSession(t *testing.T) {
	iss := newTestIssuer(t, Config{})
	h := Middleware(iss, nil)(echoToken())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "pagecache_session", Value: "forged"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	c := sessionCookie(t, rec, "pagecache_session")
	if c == nil || c.Value == "forged" {
		t.Fatalf("cookie = %v, want a fresh session", c)
	}
}

func TestMiddleware_UnsafeMethods(t *testing.T) {
	iss := newTestIssuer(t, Config{})
	session := uuid.NewString()
	token, err := iss.Token(session)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	var reached bool
	h := Middleware(iss, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	tests := []struct {
		name   string
		build  func() *http.Request
		status int
	}{
		{
			name: "missing token",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/site/contact", nil)
			},
			status: http.StatusForbidden,
		},
		{
			name: "form field",
			build: func() *http.Request {
				form := url.Values{"_csrf": {token}}
				req := httptest.NewRequest(http.MethodPost, "/site/contact", strings.NewReader(form.Encode()))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return req
			},
			status: http.StatusOK,
		},
		{
			name: "header",
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodDelete, "/site/contact", nil)
				req.Header.Set("X-CSRF-Token", token)
				return req
			},
			status: http.StatusOK,
		},
		{
			name: "tampered",
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodPut, "/site/contact", nil)
				req.Header.Set("X-CSRF-Token", token+"x")
				return req
			},
			status: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := tt.build()
			req.AddCookie(&http.Cookie{Name: "pagecache_session", Value: session})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if reached != (tt.status == http.StatusOK) {
				t.Errorf("handler reached = %v", reached)
			}
		})
	}
}

func TestTokens(t *testing.T) {
	if got := Tokens(httptest.NewRequest(http.MethodGet, "/", nil)); got != nil {
		t.Errorf("Tokens() outside middleware = %v, want nil", got)
	}

	iss := newTestIssuer(t, Config{})
	var got map[string]string
	h := Middleware(iss, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Tokens(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got[TokenName] == "" {
		t.Errorf("Tokens() = %v, want %s entry", got, TokenName)
	}
}
