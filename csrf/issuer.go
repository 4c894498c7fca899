package csrf

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenName is the placeholder name under which the live token is
// substituted into cached pages.
const TokenName = "CSRF_TOKEN"

// MinSecretLength is the minimum HMAC key length in bytes.
const MinSecretLength = 32

// Config configures token issuing and the middleware.
type Config struct {
	// Secret is the HMAC signing key.
	Secret string

	// CookieName holds the session id.
	// Default: "pagecache_session"
	CookieName string

	// FieldName is the form field carrying the token on unsafe requests.
	// Default: "_csrf"
	FieldName string

	// HeaderName is the header alternative to FieldName.
	// Default: "X-CSRF-Token"
	HeaderName string

	// TTL is the token lifetime.
	// Default: 24 hours
	TTL time.Duration

	// Issuer is the iss claim.
	// Default: "pagecache"
	Issuer string

	// Secure marks the session cookie Secure.
	Secure bool
}

func (c *Config) applyDefaults() {
	if c.CookieName == "" {
		c.CookieName = "pagecache_session"
	}
	if c.FieldName == "" {
		c.FieldName = "_csrf"
	}
	if c.HeaderName == "" {
		c.HeaderName = "X-CSRF-Token"
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.Issuer == "" {
		c.Issuer = "pagecache"
	}
}

// Issuer mints and validates tokens. It is safe for concurrent use.
type Issuer struct {
	config Config
	key    []byte
	now    func() time.Time
}

// NewIssuer creates an Issuer. The secret must be at least MinSecretLength
// bytes.
func NewIssuer(config Config) (*Issuer, error) {
	if len(config.Secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	config.applyDefaults()
	return &Issuer{config: config, key: []byte(config.Secret), now: time.Now}, nil
}

// Config returns the effective configuration.
func (i *Issuer) Config() Config { return i.config }

// Token mints a token bound to session.
func (i *Issuer) Token(session string) (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Issuer:    i.config.Issuer,
		Subject:   session,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.config.TTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("csrf: sign token: %w", err)
	}
	return signed, nil
}

// Validate checks that token was minted by this issuer for session and has
// not expired.
func (i *Issuer) Validate(token, session string) error {
	if token == "" {
		return ErrTokenMissing
	}

	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return i.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithSubject(session),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
}
