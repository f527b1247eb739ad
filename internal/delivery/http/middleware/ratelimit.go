package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	h "eventmanager/internal/delivery/http/helpers"
	"eventmanager/internal/metrics"
	"eventmanager/internal/ratelimit"
)

// RateLimit rejects callers over their per-IP budget with 429. Every response carries the
// X-RateLimit-* headers. Limiter errors let the request through.
func RateLimit(limiter ratelimit.Limiter, logger *slog.Logger, m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		d, err := limiter.Allow(r.Context(), ClientIP(r))
		if err != nil {
			logger.WarnContext(r.Context(), "rate limiter unavailable, allowing request", "err", err)
			next.ServeHTTP(w, r)
			return
		}

		reset := strconv.Itoa(int(math.Ceil(d.ResetAfter.Seconds())))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		w.Header().Set("X-RateLimit-Reset", reset)
		if !d.Allowed {
			if m != nil {
				m.RateLimited.WithLabelValues(resource(r.URL.Path)).Inc()
			}
			w.Header().Set("Retry-After", reset)
			h.WriteJSONError(w, http.StatusTooManyRequests, h.ErrCodeRateLimited, "rate limit exceeded, retry after "+reset+"s")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// resource maps "/events/3/participants" to "/events".
func resource(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	return "/" + seg
}

// Probes and scrapes are never limited.
func isExempt(path string) bool {
	switch path {
	case "/health", "/health/ready", "/metrics":
		return true
	}
	return false
}
