package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"log"
	"net/http"
	"strings"
)

// AdminTokenHeader carries the control token when a bearer header is not
// convenient
const AdminTokenHeader = "X-Admin-Token"

// RequireAdminToken rejects requests that do not present token. An empty
// token disables the check, which is the local development setup.
func RequireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tokenEqual(requestToken(r), token) {
				log.Printf("🔒 Unauthorized %s %s from %s", r.Method, r.URL.Path, GetClientIP(r))
				RecordConnectionRejected("auth")
				writeError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestToken reads the bearer token, falling back to AdminTokenHeader
func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "Bearer "
		if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
			return strings.TrimSpace(auth[len(prefix):])
		}
	}
	return r.Header.Get(AdminTokenHeader)
}

// tokenEqual compares in constant time. Hashing first hides the length.
func tokenEqual(got, want string) bool {
	g := sha256.Sum256([]byte(got))
	w := sha256.Sum256([]byte(want))
	return hmac.Equal(g[:], w[:])
}
