package mcpserver

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenMiddleware returns an http middleware that requires Authorization: Bearer <token>.
// An empty token disables the check. On failure it responds with 401 JSON and does not call next.
func TokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeJSONError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}
			presented := strings.TrimSpace(parts[1])
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
