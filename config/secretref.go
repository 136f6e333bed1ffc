package config

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const secretRefPrefix = "secretref:"

// Provider resolves secret references of the form secretref:<name>:<ref>.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not include secret values in errors.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
}

// ParseSecretRef splits secretref:<provider>:<ref>. ok is false when value
// does not carry the prefix; a prefixed value with a missing part is an error.
func ParseSecretRef(value string) (provider, ref string, ok bool, err error) {
	rest, found := strings.CutPrefix(value, secretRefPrefix)
	if !found {
		return "", "", false, nil
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || strings.TrimSpace(provider) == "" || strings.TrimSpace(ref) == "" {
		return "", "", true, ErrInvalidSecretRef
	}
	return provider, ref, true, nil
}

// FileProvider reads secrets from files, as mounted by container runtimes.
// Trailing newlines are trimmed.
type FileProvider struct {
	// ReadFile defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

func (FileProvider) Name() string { return "file" }

func (p FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	read := p.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	b, err := read(ref)
	if err != nil {
		return "", fmt.Errorf("read secret file: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// EnvProvider reads secrets from other environment variables.
type EnvProvider struct {
	Lookup LookupFunc
}

func (EnvProvider) Name() string { return "env" }

func (p EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	lookup := p.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(ref)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, ref)
	}
	return v, nil
}

// Resolver expands values and resolves secret references.
type Resolver struct {
	lookup    LookupFunc
	providers map[string]Provider
}

// NewResolver creates a resolver using lookup for expansion and the given
// providers for secret references. Nil providers are skipped.
func NewResolver(lookup LookupFunc, providers ...Provider) *Resolver {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	r := &Resolver{lookup: lookup, providers: make(map[string]Provider)}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// Resolve expands value, then resolves it if it is a secret reference.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value, r.lookup)
	if err != nil {
		return "", err
	}

	name, ref, isRef, err := ParseSecretRef(expanded)
	if err != nil {
		return "", err
	}
	if !isRef {
		return expanded, nil
	}

	p, ok := r.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p.Resolve(ctx, ref)
}

var (
	_ Provider = FileProvider{}
	_ Provider = EnvProvider{}
)
