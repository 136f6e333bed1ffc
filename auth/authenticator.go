package auth

import (
	"context"
	"net/http"
)

// Authenticator validates credentials and returns an identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines.
// - Errors: Authenticate returns (nil, error) only for internal errors;
//   a rejected credential is (AuthResult{Authenticated: false}, nil).
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Supports reports whether the request carries this authenticator's credential.
	Supports(ctx context.Context, req *AuthRequest) bool

	// Authenticate validates the credential.
	Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// AuthRequest carries the request data authenticators look at.
type AuthRequest struct {
	Headers http.Header
}

// RequestFromHTTP builds an AuthRequest from an HTTP request.
func RequestFromHTTP(r *http.Request) *AuthRequest {
	return &AuthRequest{Headers: r.Header}
}

// GetHeader returns the first value for key, or "".
func (r *AuthRequest) GetHeader(key string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers.Get(key)
}

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	Authenticated bool

	// Identity is set when Authenticated is true.
	Identity *Identity

	// Error is set when Authenticated is false.
	Error error

	Method string
}

// AuthSuccess creates a successful result.
func AuthSuccess(identity *Identity) *AuthResult {
	return &AuthResult{
		Authenticated: true,
		Identity:      identity,
		Method:        string(identity.Method),
	}
}

// AuthFailure creates a failed result.
func AuthFailure(err error, method AuthMethod) *AuthResult {
	return &AuthResult{Error: err, Method: string(method)}
}
