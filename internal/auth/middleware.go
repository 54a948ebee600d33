package auth

import (
	"net/http"
	"strings"
)

// Middleware wraps an HTTP handler with Bearer-token validation. When auth
// is disabled the handler passes through untouched.
func Middleware(a *Authenticator, next http.Handler) http.Handler {
	if !a.IsEnabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			// Browsers cannot set headers on EventSource/img; allow query param
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			http.Error(w, "authorization required", http.StatusUnauthorized)
			return
		}

		if _, err := a.ValidateToken(token); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
