package csrf

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonwraymond/pagecache/observe"
)

type contextKey int

const (
	tokenKey contextKey = iota
	sessionKey
)

// TokenFromContext returns the token minted for the current request.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok
}

// SessionFromContext returns the session id of the current request.
func SessionFromContext(ctx context.Context) (string, bool) {
	session, ok := ctx.Value(sessionKey).(string)
	return session, ok
}

// Tokens returns the placeholder table for r: TokenName mapped to the live
// token, or nil outside the middleware.
func Tokens(r *http.Request) map[string]string {
	token, ok := TokenFromContext(r.Context())
	if !ok {
		return nil
	}
	return map[string]string{TokenName: token}
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// Middleware ensures a session cookie, rejects unsafe requests without a
// valid token, and stores a fresh token in the request context.
func Middleware(iss *Issuer, logger observe.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NopLogger()
	}
	cfg := iss.Config()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			session := sessionID(r, cfg.CookieName)
			if session == "" {
				session = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    session,
					Path:     "/",
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			if !safeMethod(r.Method) {
				token := r.Header.Get(cfg.HeaderName)
				if token == "" {
					token = r.PostFormValue(cfg.FieldName)
				}
				if err := iss.Validate(token, session); err != nil {
					logger.Warn(ctx, "csrf token rejected",
						observe.Field{Key: "path", Value: r.URL.Path},
						observe.Field{Key: "error", Value: err},
					)
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}

			token, err := iss.Token(session)
			if err != nil {
				logger.Error(ctx, "csrf token mint failed", observe.Field{Key: "error", Value: err})
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			ctx = context.WithValue(ctx, sessionKey, session)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionID returns the session cookie value when it is a well-formed id.
func sessionID(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}
