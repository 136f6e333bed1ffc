package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// KeyLength is the length of every derived key (hex of 16 hash bytes).
const KeyLength = 32

// Keyer derives deterministic cache keys from computation parameters.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: a non-nil error must unwrap to ErrKeyDerivation.
type Keyer interface {
	// Key generates a cache key from a namespace and parameters.
	Key(namespace string, params any) (string, error)
}

// KeyDerivationError reports parameters that could not be canonicalized.
type KeyDerivationError struct {
	Namespace string
	Err       error
}

func (e *KeyDerivationError) Error() string {
	return fmt.Sprintf("cache: derive key for %q: %v", e.Namespace, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *KeyDerivationError) Unwrap() []error {
	return []error{ErrKeyDerivation, e.Err}
}

// DefaultKeyer generates SHA-256 based cache keys over canonical JSON.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
// The key is the hex of the first 16 bytes of
// SHA-256(namespace + ":" + canonical JSON(params)).
func (k *DefaultKeyer) Key(namespace string, params any) (string, error) {
	canonical, err := Canonicalize(params)
	if err != nil {
		return "", &KeyDerivationError{Namespace: namespace, Err: err}
	}
	return hashKey(namespace + ":" + string(canonical)), nil
}

// Canonicalize returns the RFC 8785 form of params.
//
// Object members are sorted and numbers use the shortest round-trip form, so
// 1, 1.0 and int64(1) serialize identically. Integers beyond 2^53 lose
// precision.
func Canonicalize(params any) ([]byte, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return jsoncanonicalizer.Transform(raw)
}

// DegradedKey is the key used when parameters cannot be canonicalized. Every
// such request in a namespace shares it.
func DegradedKey(namespace string) string {
	return hashKey(namespace)
}

// DeriveKey derives a key with k and falls back to DegradedKey on failure.
// The returned error is the derivation failure, if any; the key is always usable.
func DeriveKey(k Keyer, namespace string, params any) (string, error) {
	key, err := k.Key(namespace, params)
	if err != nil {
		return DegradedKey(namespace), err
	}
	return key, nil
}

func hashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:KeyLength/2])
}

var _ Keyer = (*DefaultKeyer)(nil)
