package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// RequireRole returns middleware that authenticates each request with authn
// and admits only identities holding role. Rejected requests get a JSON
// {"error": ...} body: 401 for bad or missing credentials, 403 for a
// missing role, 500 when the authenticator itself fails.
//
// A nil authn rejects every request; admin routes are closed unless
// credentials are configured.
func RequireRole(authn Authenticator, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authn == nil {
				writeError(w, http.StatusUnauthorized, ErrMissingCredentials)
				return
			}

			req := RequestFromHTTP(r)
			if !authn.Supports(r.Context(), req) {
				writeError(w, http.StatusUnauthorized, ErrMissingCredentials)
				return
			}

			result, err := authn.Authenticate(r.Context(), req)
			if err != nil {
				writeError(w, http.StatusInternalServerError, errors.New("auth: authentication unavailable"))
				return
			}
			if !result.Authenticated {
				writeError(w, http.StatusUnauthorized, result.Error)
				return
			}
			if !result.Identity.HasRole(role) {
				writeError(w, http.StatusForbidden, ErrForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), result.Identity)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = ErrInvalidCredentials
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="obr-forecast"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
