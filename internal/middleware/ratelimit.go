package middleware

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/darkden-lab/ozone/internal/httputil"
)

// ipLimiter holds a rate limiter and the last time it was accessed.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// rateLimiterStore manages per-IP rate limiters with automatic cleanup.
type rateLimiterStore struct {
	limiters sync.Map
	rps      float64
	burst    int
	stopCh   chan struct{}
}

// newRateLimiterStore creates a store that periodically evicts stale entries.
func newRateLimiterStore(rps float64, burst int) *rateLimiterStore {
	s := &rateLimiterStore{
		rps:    rps,
		burst:  burst,
		stopCh: make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// getLimiter returns the rate limiter for the given IP, creating one if needed.
func (s *rateLimiterStore) getLimiter(ip string) *rate.Limiter {
	now := time.Now()

	if v, ok := s.limiters.Load(ip); ok {
		entry := v.(*ipLimiter)
		entry.lastSeen.Store(now.UnixNano())
		return entry.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(s.rps), s.burst)
	entry := &ipLimiter{limiter: limiter}
	entry.lastSeen.Store(now.UnixNano())
	actual, loaded := s.limiters.LoadOrStore(ip, entry)
	if loaded {
		existing := actual.(*ipLimiter)
		existing.lastSeen.Store(now.UnixNano())
		return existing.limiter
	}
	return limiter
}

// cleanup removes entries that haven't been seen in 3 minutes.
func (s *rateLimiterStore) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.limiters.Range(func(key, value any) bool {
				entry := value.(*ipLimiter)
				if now.Sub(time.Unix(0, entry.lastSeen.Load())) > 3*time.Minute {
					s.limiters.Delete(key)
				}
				return true
			})
		case <-s.stopCh:
			return
		}
	}
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is not
// trusted since any client can set it.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port.
		return r.RemoteAddr
	}
	return ip
}

// RateLimitMiddleware returns a gorilla/mux middleware that enforces per-IP
// rate limiting using a token bucket algorithm. rps is the sustained
// requests-per-second rate and burst is the maximum burst size.
func RateLimitMiddleware(rps float64, burst int) mux.MiddlewareFunc {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	store := newRateLimiterStore(rps, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			limiter := store.getLimiter(ip)

			if !limiter.Allow() {
				httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// StrictRateLimitMiddleware is like RateLimitMiddleware but intended for
// the token endpoint. It keeps its own limiter store, independent of the
// gateway-wide one.
func StrictRateLimitMiddleware(rps float64, burst int) mux.MiddlewareFunc {
	store := newRateLimiterStore(rps, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			limiter := store.getLimiter(ip)

			if !limiter.Allow() {
				httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
