// Package auth guards the cache administration endpoints.
//
// Authenticators turn request headers into an Identity: an API key
// (X-API-Key, compared by SHA-256 hash) or an HMAC-signed JWT bearer token.
// A CompositeAuthenticator tries them in order. RequireRole wraps an
// http.Handler so only identities holding a role reach it.
//
// Usage:
//
//	store := auth.NewMemoryAPIKeyStore()
//	store.Add(auth.APIKeyInfo{ID: "ops", KeyHash: auth.HashAPIKey(key), Principal: "ops", Roles: []string{auth.RoleAdmin}})
//	authn := auth.NewCompositeAuthenticator(
//		auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, store),
//		auth.NewJWTAuthenticator(auth.JWTConfig{}, auth.NewStaticKeyProvider(secret)),
//	)
//	mux.Handle("DELETE /cache", auth.RequireRole(authn, auth.RoleAdmin)(clearHandler))
package auth
