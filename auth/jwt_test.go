package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func TestJWTAuthenticator_Supports(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider(testSecret))

	tests := []struct {
		name string
		req  *AuthRequest
		want bool
	}{
		{"none", headers(), false},
		{"bearer", headers("Authorization", "Bearer abc"), true},
		{"basic", headers("Authorization", "Basic abc"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Supports(context.Background(), tt.req); got != tt.want {
				t.Errorf("Supports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJWTAuthenticator_Authenticate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := NewJWTAuthenticator(JWTConfig{
		Issuer:   "obr-forecast",
		Audience: "admin-api",
		Now:      func() time.Time { return now },
	}, NewStaticKeyProvider(testSecret))

	valid := jwt.MapClaims{
		"sub":   "alice",
		"iss":   "obr-forecast",
		"aud":   "admin-api",
		"roles": []string{"admin", "viewer"},
		"exp":   now.Add(time.Hour).Unix(),
		"iat":   now.Add(-time.Minute).Unix(),
	}
	with := func(k string, v any) jwt.MapClaims {
		c := jwt.MapClaims{}
		for key, val := range valid {
			c[key] = val
		}
		if v == nil {
			delete(c, k)
		} else {
			c[k] = v
		}
		return c
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid", sign(t, jwt.SigningMethodHS256, testSecret, valid), nil},
		{"expired", sign(t, jwt.SigningMethodHS256, testSecret, with("exp", now.Add(-time.Minute).Unix())), ErrTokenExpired},
		{"wrong issuer", sign(t, jwt.SigningMethodHS256, testSecret, with("iss", "someone-else")), ErrInvalidCredentials},
		{"wrong audience", sign(t, jwt.SigningMethodHS256, testSecret, with("aud", "other")), ErrInvalidCredentials},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), valid), ErrInvalidCredentials},
		{"unsigned", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid), ErrInvalidCredentials},
		{"garbage", "not.a.token", ErrTokenMalformed},
		{"empty", "", ErrMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := a.Authenticate(context.Background(), headers("Authorization", "Bearer "+tt.token))
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if tt.wantErr != nil {
				if result.Authenticated {
					t.Fatal("Authenticated = true, want false")
				}
				if !errors.Is(result.Error, tt.wantErr) {
					t.Errorf("Error = %v, want %v", result.Error, tt.wantErr)
				}
				return
			}

			if !result.Authenticated {
				t.Fatalf("Authenticated = false: %v", result.Error)
			}
			id := result.Identity
			if id.Principal != "alice" {
				t.Errorf("Principal = %q, want alice", id.Principal)
			}
			if !id.HasRole("admin") || !id.HasRole("viewer") {
				t.Errorf("Roles = %v", id.Roles)
			}
			if !id.ExpiresAt.Equal(now.Add(time.Hour)) {
				t.Errorf("ExpiresAt = %v", id.ExpiresAt)
			}
			if id.Method != AuthMethodJWT {
				t.Errorf("Method = %q", id.Method)
			}
		})
	}
}

func TestJWTAuthenticator_SpaceSeparatedRoles(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{RolesClaim: "scope"}, NewStaticKeyProvider(testSecret))
	token := sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "svc", "scope": "admin read"})

	result, err := a.Authenticate(context.Background(), headers("Authorization", "Bearer "+token))
	if err != nil || !result.Authenticated {
		t.Fatalf("Authenticate() = %+v, %v", result, err)
	}
	if !result.Identity.HasRole(RoleAdmin) {
		t.Errorf("Roles = %v, want admin", result.Identity.Roles)
	}
}
