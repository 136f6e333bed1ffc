package config

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingEnv indicates a ${VAR} reference to an unset variable.
	ErrMissingEnv = errors.New("config: missing environment variable")

	// ErrInvalidValue indicates a setting could not be parsed.
	ErrInvalidValue = errors.New("config: invalid value")

	// ErrInvalidTTL indicates inconsistent cache TTL settings.
	ErrInvalidTTL = errors.New("config: invalid cache ttl")

	// ErrUnknownProvider indicates a secret reference names no registered provider.
	ErrUnknownProvider = errors.New("config: unknown secret provider")

	// ErrInvalidSecretRef indicates a malformed secretref: value.
	ErrInvalidSecretRef = errors.New("config: invalid secret reference")
)

// FieldError reports which variable failed to load.
type FieldError struct {
	Key   string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config: %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("config: %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
