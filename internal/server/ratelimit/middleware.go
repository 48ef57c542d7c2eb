package ratelimit

import (
	"net"
	"net/http"
	"strconv"

	apierrors "github.com/maruel/xbase/internal/errors"
	"github.com/maruel/xbase/internal/utils"
)

// WriteHeaders writes rate limit headers to the response.
func WriteHeaders(w http.ResponseWriter, r Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(r.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(r.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(r.ResetAt.Unix(), 10))
	if !r.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(r.RetryAfter.Seconds())))
	}
}

// KeyFunc returns the client identity of a request.
type KeyFunc func(r *http.Request) string

// ClientIP returns the remote address without its port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over quota with 429. Keys are scoped per tier.
func Middleware(c *Config, key KeyFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tier := c.Match(r.Method, r.URL.Path)
			if tier == nil {
				next.ServeHTTP(w, r)
				return
			}
			res := tier.Limiter.Allow(tier.Name + ":" + key(r))
			WriteHeaders(w, res)
			if !res.Allowed {
				utils.RespondError(w, http.StatusTooManyRequests, "Too many requests", string(apierrors.ErrRateLimited))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
