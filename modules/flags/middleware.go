package flags

import (
	"crypto/subtle"
	"net/http"
)

// Request headers carrying the caller's role and identity. Real
// authentication happens upstream (gateway, session middleware); these
// headers are the contract between that layer and this module.
const (
	roleHeader  = "X-Admin-Role"
	actorHeader = "X-Admin-Actor"
)

// requireRole guards the admin routes: the request must carry the expected
// role header. An empty expected role locks the surface entirely, so a
// missing configuration fails closed rather than open.
func requireRole(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(roleHeader)
			if expected == "" || got == "" ||
				subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "admin role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// actorFrom extracts the acting administrator's identity for history
// attribution.
func actorFrom(r *http.Request) string {
	if actor := r.Header.Get(actorHeader); actor != "" {
		return actor
	}
	return "unknown"
}
