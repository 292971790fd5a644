package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireAdminToken validates the static operator token (ADMIN_TOKEN), isolated from citizen/official auth.
// An empty token disables every admin route. Missing or mismatch → 403.
func RequireAdminToken(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminToken == "" {
				respondWithError(w, http.StatusForbidden, "Forbidden", "Admin access not configured")
				return
			}
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusForbidden, "Forbidden", "Authorization header required")
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondWithError(w, http.StatusForbidden, "Forbidden", "Invalid authorization format")
				return
			}
			if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(adminToken)) != 1 {
				respondWithError(w, http.StatusForbidden, "Forbidden", "Invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
