package middlewarex

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth guards the outbound API with a single shared token. An empty
// token locks the API instead of opening it.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			key := strings.TrimPrefix(auth, "Bearer ")
			if token == "" || subtle.ConstantTimeCompare([]byte(key), []byte(token)) != 1 {
				http.Error(w, "invalid key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
