package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/BerylCAtieno/unitydesk-api/internal/metrics"
	"github.com/BerylCAtieno/unitydesk-api/internal/ratelimit"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
)

// RateLimit answers 429 once a client exceeds the limiter's window. When the
// counter store is unreachable the request is let through. Clients are keyed by
// ClientIP; see there for trustProxy.
func RateLimit(limiter *ratelimit.Limiter, trustProxy bool, logger *utils.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, trustProxy)

			decision, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				logger.Warn("Rate limiter unavailable, allowing request", "error", err, "ip", ip)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				metrics.RateLimited.Inc()
				retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the connection's remote address. With trustProxy it prefers
// the first X-Forwarded-For hop, then X-Real-IP; those headers are client
// controlled unless a proxy in front rewrites them.
func ClientIP(r *http.Request, trustProxy bool) string {
	if !trustProxy {
		return remoteHost(r)
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
