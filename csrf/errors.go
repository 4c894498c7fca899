package csrf

import "errors"

// Sentinel errors for token handling.
var (
	ErrWeakSecret   = errors.New("csrf: secret must be at least 32 bytes")
	ErrTokenMissing = errors.New("csrf: token missing")
	ErrTokenInvalid = errors.New("csrf: token invalid")
	ErrTokenExpired = errors.New("csrf: token expired")
)
