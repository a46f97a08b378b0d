package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/atinyakov/SealKeeper/internal/ratelimit"
)

// RateLimit rejects requests with 429 once the client identified by its
// remote IP exhausts its bucket in l. The key is the transport peer address;
// X-Forwarded-For and X-Real-IP are client controlled and never consulted.
// A nil l disables limiting.
func RateLimit(l *ratelimit.KeyedLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientKey(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
