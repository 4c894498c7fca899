// Package csrf issues and checks anti-forgery tokens.
//
// Tokens are HS256 JWTs bound to a random per-browser session id kept in a
// cookie. Middleware puts the current request's token in the context, where
// page rendering and the page cache's token substitution pick it up under
// the TokenName placeholder. Unsafe methods must echo a valid token in the
// form field or header, otherwise the request is rejected with 403.
package csrf
