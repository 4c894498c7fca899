package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// SecretRefPrefix marks a value that is resolved through a SecretProvider.
//
//	secretref:<provider>:<ref>
const SecretRefPrefix = "secretref:"

// ErrSecret is returned when a secret reference cannot be resolved.
var ErrSecret = errors.New("config: secret resolution failed")

// SecretProvider resolves secrets by reference.
//
// Implementations must be safe for concurrent use and must not log secret values.
type SecretProvider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
}

// FileSecrets reads a secret from a file, as mounted by container runtimes.
// A single trailing newline is dropped.
type FileSecrets struct{}

func (FileSecrets) Name() string { return "file" }

func (FileSecrets) Resolve(_ context.Context, ref string) (string, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", err
	}
	s := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(s, "\r"), nil
}

// EnvSecrets reads a secret from an environment variable.
type EnvSecrets struct{}

func (EnvSecrets) Name() string { return "env" }

func (EnvSecrets) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", ref)
	}
	return v, nil
}

// SecretResolver resolves secretref values using registered providers.
type SecretResolver struct {
	providers map[string]SecretProvider
}

// NewSecretResolver creates a resolver over providers. Nil providers are
// skipped; a later provider replaces an earlier one with the same name.
func NewSecretResolver(providers ...SecretProvider) *SecretResolver {
	r := &SecretResolver{providers: make(map[string]SecretProvider, len(providers))}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// DefaultSecrets resolves the file and env providers.
func DefaultSecrets() *SecretResolver {
	return NewSecretResolver(FileSecrets{}, EnvSecrets{})
}

// ParseSecretRef splits a full secretref value into provider and ref.
func ParseSecretRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, SecretRefPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, ok = strings.Cut(rest, ":")
	if !ok || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

// Resolve returns value unchanged unless it is a secretref, in which case
// the named provider supplies it. An empty resolved secret is an error.
func (r *SecretResolver) Resolve(ctx context.Context, value string) (string, error) {
	if !strings.HasPrefix(value, SecretRefPrefix) {
		return value, nil
	}
	name, ref, ok := ParseSecretRef(value)
	if !ok {
		return "", fmt.Errorf("%w: malformed reference %q", ErrSecret, value)
	}
	p, ok := r.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: provider %q is not registered", ErrSecret, name)
	}
	v, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrSecret, name, err)
	}
	if v == "" {
		return "", fmt.Errorf("%w: provider %q returned an empty value", ErrSecret, name)
	}
	return v, nil
}

// ResolveSecrets replaces secretref values in f with their resolved values.
func (f *File) ResolveSecrets(ctx context.Context, r *SecretResolver) error {
	secret, err := r.Resolve(ctx, f.CSRF.Secret)
	if err != nil {
		return fmt.Errorf("csrf.secret: %w", err)
	}
	f.CSRF.Secret = secret
	return nil
}
