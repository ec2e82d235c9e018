package middleware

import (
	"net/http"
)

// RequireSessionKey rejects requests whose session does not hold key with
// 401. It must be installed inside Sessions.
func RequireSessionKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := SessionFromRequest(r)
			if s == nil || !s.Has(key) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
