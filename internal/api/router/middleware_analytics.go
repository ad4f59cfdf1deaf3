package router

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const analyticsTokenHeader = "X-Analytics-Token"

// requireAnalyticsToken gates the analytics read endpoints behind a shared
// token. When expected is empty, the middleware is a no-op.
func requireAnalyticsToken(expected string) func(http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(analyticsTokenHeader))
			if token == "" {
				token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				http.Error(w, "invalid analytics token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
