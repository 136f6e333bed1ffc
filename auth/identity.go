package auth

import (
	"slices"
	"time"
)

// RoleAdmin grants access to cache administration.
const RoleAdmin = "admin"

// AuthMethod indicates how authentication was performed.
type AuthMethod string

const (
	AuthMethodAPIKey    AuthMethod = "api_key"
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodAnonymous AuthMethod = "anonymous"
)

// Identity is an authenticated caller.
type Identity struct {
	Principal string
	Roles     []string
	Method    AuthMethod

	// Claims holds token claims or API key metadata.
	Claims map[string]any

	// ExpiresAt is zero when the credential never expires.
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// HasRole reports whether the identity holds role.
func (id *Identity) HasRole(role string) bool {
	return id != nil && slices.Contains(id.Roles, role)
}

// IsExpired reports whether the identity has expired at now.
func (id *Identity) IsExpired(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && now.After(id.ExpiresAt)
}

// IsAnonymous reports whether the identity carries no principal.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.Method == AuthMethodAnonymous || id.Principal == ""
}

// AnonymousIdentity returns the identity used for unauthenticated requests.
func AnonymousIdentity() *Identity {
	return &Identity{Principal: "anonymous", Method: AuthMethodAnonymous}
}
