package quota

import (
	"net"
	"net/http"
	"strconv"

	"github.com/captain108/FileToLink-cap/internal/metrics"
)

// RateLimitMiddleware returns middleware that enforces per-client rate
// limits. Clients are identified by r.RemoteAddr, so it belongs behind
// chi's RealIP middleware when the gateway sits behind a proxy.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !limiter.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientKey(r.RemoteAddr)
			if !limiter.Allow(client) {
				metrics.RecordRateLimitHit()
				w.Header().Set("Retry-After", strconv.Itoa(limiter.RetryAfter(client)))
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
