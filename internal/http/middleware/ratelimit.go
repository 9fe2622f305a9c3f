package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per caller. It is sized for the
// Evolution webhook, where a reconnecting instance can flush a backlog of
// queued events from a single address in one burst.
type RateLimiter struct {
	mu      sync.Mutex
	callers map[string]*caller
	limit   rate.Limit
	burst   int
}

type caller struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSec sustained requests per caller with the given
// burst headroom.
func NewRateLimiter(perSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		callers: make(map[string]*caller),
		limit:   rate.Limit(perSec),
		burst:   burst,
	}
}

// Allow reports whether a request from key fits the budget. Idle buckets are
// evicted inline once the map gets large, so dead instances do not accumulate.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	c, ok := rl.callers[key]
	if !ok {
		c = &caller{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.callers[key] = c
	}
	c.lastSeen = now

	if len(rl.callers) > 1024 {
		cutoff := now.Add(-10 * time.Minute)
		for k, v := range rl.callers {
			if v.lastSeen.Before(cutoff) {
				delete(rl.callers, k)
			}
		}
	}
	return c.limiter.Allow()
}

// RateLimit rejects callers above the configured budget with 429 and a
// Retry-After hint.
func RateLimit(perSec float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(perSec, burst)
	retryAfter := "1"
	if perSec > 0 && perSec < 1 {
		retryAfter = strconv.Itoa(int(1/perSec) + 1)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(callerKey(r)) {
				w.Header().Set("Retry-After", retryAfter)
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// callerKey prefers the client IP resolved by chi's RealIP middleware and
// falls back to the socket address with the port stripped.
func callerKey(r *http.Request) string {
	if xri := strings.TrimSpace(r.Header.Get("X-Real-Ip")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
