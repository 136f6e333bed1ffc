package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PolicyEngine/obr-forecast/auth"
	"github.com/PolicyEngine/obr-forecast/config"
)

func TestNewGuard(t *testing.T) {
	tests := []struct {
		name         string
		cfg          config.ComputeConfig
		wantNil      bool
		wantBulkhead bool
	}{
		{"unbounded", config.ComputeConfig{}, true, false},
		{"timeout only", config.ComputeConfig{Timeout: time.Minute}, false, false},
		{"bulkhead", config.ComputeConfig{MaxConcurrent: 2}, false, true},
		{"both", config.ComputeConfig{MaxConcurrent: 2, Timeout: time.Minute}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGuard(tt.cfg)
			if (g == nil) != tt.wantNil {
				t.Fatalf("newGuard() = %v, wantNil %v", g, tt.wantNil)
			}
			if (g.Bulkhead() != nil) != tt.wantBulkhead {
				t.Errorf("Bulkhead() = %v, want bulkhead %v", g.Bulkhead(), tt.wantBulkhead)
			}
		})
	}
}

func TestNewLimiter(t *testing.T) {
	if newLimiter(config.SubmitConfig{}) != nil {
		t.Error("zero rate should disable the limiter")
	}
	if newLimiter(config.SubmitConfig{Rate: 1, Burst: 2}) == nil {
		t.Error("positive rate should build a limiter")
	}
}

func TestNewAdminAuthenticator(t *testing.T) {
	if a := newAdminAuthenticator(config.AuthConfig{}); a != nil {
		t.Fatalf("no credentials: got %v, want nil", a)
	}

	a := newAdminAuthenticator(config.AuthConfig{AdminAPIKey: "k", JWTSecret: "s", JWTIssuer: "ops"})
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "bob", "iss": "ops", "roles": []string{"admin"},
	}).SignedString([]byte("s"))
	if err != nil {
		t.Fatal(err)
	}

	h := auth.RequireRole(a, auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"api key", "X-API-Key", "k", http.StatusNoContent},
		{"jwt", "Authorization", "Bearer " + token, http.StatusNoContent},
		{"wrong key", "X-API-Key", "x", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/cache", nil)
			req.Header.Set(tt.header, tt.value)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("Status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestStaticDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	for in, want := range map[string]string{
		"":                        "",
		dir:                       dir,
		file:                      "",
		filepath.Join(dir, "nope"): "",
	} {
		if got := staticDir(in); got != want {
			t.Errorf("staticDir(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSweepJobs_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		sweepJobs(ctx, nil, time.Hour, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweepJobs did not return after cancel")
	}
}
