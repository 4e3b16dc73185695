package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// KeyFunc derives the rate-limit key of a request.
type KeyFunc func(*http.Request) string

// RouteAndClient keys requests by route pattern and client IP, so every
// route carries its own budget per client.
func RouteAndClient(r *http.Request) string {
	route := r.Pattern
	if route == "" {
		route = r.URL.Path
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return route + "|" + host
}

// Middleware rejects requests over budget with 429 and a Retry-After
// header in whole seconds.
func Middleware(limiter *Limiter, key KeyFunc, logger *zap.Logger) func(http.Handler) http.Handler {
	if key == nil {
		key = RouteAndClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestKey := key(r)
			allowed, retryAfter := limiter.Allow(requestKey)
			if !allowed {
				seconds := int(math.Ceil(retryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				logger.Debug("Rate limited", zap.String("key", requestKey), zap.Int("retryAfter", seconds))
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(requestKey)))
			next.ServeHTTP(w, r)
		})
	}
}
