package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/taply/backend/internal/models"
	"github.com/taply/backend/internal/ratelimit"
)

const MsgTooManyRequests = "Too many requests."

// RateLimit allows perSecond requests per client IP. Limiter failures let the
// request through.
func RateLimit(limiter ratelimit.Limiter, perSecond int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || perSecond <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), ClientIP(r), perSecond, time.Now())
			if err != nil {
				log.WithError(err).Warn("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(perSecond))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, models.NewErrorResponse(MsgTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of RemoteAddr. chi's RealIP middleware
// rewrites RemoteAddr from X-Forwarded-For when the server sits behind a proxy.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
