package middleware

import (
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/metrics"
	"github.com/example/candleworks-fulfillment/internal/ratelimit"
)

// RateLimit bounds attempts per client identity. Authenticated requests are
// keyed by user id, anonymous ones by remote address.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := GetUserID(r.Context())
			if clientKey == "" {
				clientKey = remoteHost(r)
			}

			allowed, err := limiter.Allow(r.Context(), clientKey)
			if err != nil {
				// A broken limiter backend must not take the endpoint down.
				logger.Error("rate limiter check failed", zap.Error(err))
				allowed = true
			}
			if !allowed {
				metrics.RateLimited.Inc()
				respondError(w, "too many attempts, try again later", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
