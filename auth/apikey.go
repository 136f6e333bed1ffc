package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"maps"
	"strings"
	"sync"
	"time"
)

// APIKeyConfig configures the API key authenticator.
type APIKeyConfig struct {
	// HeaderName is the header containing the API key.
	// Default: "X-API-Key"
	HeaderName string

	// Now is the time source for expiry checks. Default: time.Now
	Now func() time.Time
}

// APIKeyInfo describes a registered API key.
type APIKeyInfo struct {
	ID string

	// KeyHash is the SHA-256 hex digest of the key. Keys are never stored in clear.
	KeyHash string

	Principal string
	Roles     []string

	// ExpiresAt is zero for keys that never expire.
	ExpiresAt time.Time

	Metadata map[string]any
}

// APIKeyStore looks keys up by hash.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: an unknown hash is (nil, nil), not an error.
type APIKeyStore interface {
	Lookup(ctx context.Context, keyHash string) (*APIKeyInfo, error)
}

// APIKeyAuthenticator validates API keys.
type APIKeyAuthenticator struct {
	config APIKeyConfig
	store  APIKeyStore
}

// NewAPIKeyAuthenticator creates an API key authenticator backed by store.
func NewAPIKeyAuthenticator(config APIKeyConfig, store APIKeyStore) *APIKeyAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &APIKeyAuthenticator{config: config, store: store}
}

func (a *APIKeyAuthenticator) Name() string {
	return string(AuthMethodAPIKey)
}

func (a *APIKeyAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	return req.GetHeader(a.config.HeaderName) != ""
}

func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	key := strings.TrimSpace(req.GetHeader(a.config.HeaderName))
	if key == "" {
		return AuthFailure(ErrMissingCredentials, AuthMethodAPIKey), nil
	}

	info, err := a.store.Lookup(ctx, HashAPIKey(key))
	if err != nil {
		return nil, err
	}
	if info == nil {
		return AuthFailure(ErrInvalidCredentials, AuthMethodAPIKey), nil
	}
	if !info.ExpiresAt.IsZero() && a.config.Now().After(info.ExpiresAt) {
		return AuthFailure(ErrTokenExpired, AuthMethodAPIKey), nil
	}

	claims := make(map[string]any, len(info.Metadata)+1)
	maps.Copy(claims, info.Metadata)
	claims["key_id"] = info.ID

	return AuthSuccess(&Identity{
		Principal: info.Principal,
		Roles:     info.Roles,
		Method:    AuthMethodAPIKey,
		Claims:    claims,
		ExpiresAt: info.ExpiresAt,
	}), nil
}

// HashAPIKey returns the SHA-256 hex digest stored for key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// MemoryAPIKeyStore is an in-memory APIKeyStore.
type MemoryAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]APIKeyInfo
}

// NewMemoryAPIKeyStore creates an empty store.
func NewMemoryAPIKeyStore() *MemoryAPIKeyStore {
	return &MemoryAPIKeyStore{keys: make(map[string]APIKeyInfo)}
}

// Lookup compares keyHash against every stored hash in constant time.
func (s *MemoryAPIKeyStore) Lookup(_ context.Context, keyHash string) (*APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *APIKeyInfo
	for hash, info := range s.keys {
		if subtle.ConstantTimeCompare([]byte(hash), []byte(keyHash)) == 1 {
			found = &info
		}
	}
	return found, nil
}

// Add stores info under its KeyHash, replacing any previous entry.
func (s *MemoryAPIKeyStore) Add(info APIKeyInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[info.KeyHash] = info
}

// Remove deletes the key with the given hash.
func (s *MemoryAPIKeyStore) Remove(keyHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, keyHash)
}

// Len returns the number of stored keys.
func (s *MemoryAPIKeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

var (
	_ Authenticator = (*APIKeyAuthenticator)(nil)
	_ APIKeyStore   = (*MemoryAPIKeyStore)(nil)
)
