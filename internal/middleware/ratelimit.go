package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const rateLimitWindow = time.Minute

type ipLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

// rateLimiter keeps one token bucket per key. A bucket idle for a whole window is full again,
// so it is dropped and recreated on the next request.
type rateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	max       int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{limiters: make(map[string]*ipLimiter), max: max, window: window, now: time.Now}
}

func (r *rateLimiter) allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if now.Sub(r.lastSweep) >= r.window {
		r.sweep(now)
		r.lastSweep = now
	}
	l, ok := r.limiters[key]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(rate.Every(r.window/time.Duration(r.max)), r.max)}
		r.limiters[key] = l
	}
	l.last = now
	return l.limiter.AllowN(now, 1)
}

// sweep drops buckets unused for a window. Caller holds mu.
func (r *rateLimiter) sweep(now time.Time) {
	for key, l := range r.limiters {
		if now.Sub(l.last) >= r.window {
			delete(r.limiters, key)
		}
	}
}

// RateLimitSubmissions limits POST requests per client IP to perMinute; other methods pass.
// The client IP is RemoteAddr, rewritten by TrustedRealIP for requests from known proxies.
// perMinute <= 0 disables the limit.
func RateLimitSubmissions(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := newRateLimiter(perMinute, rateLimitWindow)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.allow(clientIP(r)) {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
