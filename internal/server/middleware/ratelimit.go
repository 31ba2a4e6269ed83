package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 10 * time.Minute
	limiterIdleAfter  = 30 * time.Minute
)

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet hands out one token bucket per key and forgets idle keys.
type limiterSet[K comparable] struct {
	mu       sync.Mutex
	limiters map[K]*entry
	rps      rate.Limit
	burst    int
}

func newLimiterSet[K comparable](ctx context.Context, requestsPerSecond float64, burst int) *limiterSet[K] {
	s := &limiterSet[K]{
		limiters: make(map[K]*entry),
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
	}

	go func() {
		ticker := time.NewTicker(limiterSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep(time.Now().Add(-limiterIdleAfter))
			case <-ctx.Done():
				return
			}
		}
	}()

	return s
}

func (s *limiterSet[K]) sweep(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.limiters {
		if e.lastAccess.Before(cutoff) {
			delete(s.limiters, k)
		}
	}
}

func (s *limiterSet[K]) allow(key K) bool {
	s.mu.Lock()
	e, ok := s.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.limiters[key] = e
	}
	e.lastAccess = time.Now()
	s.mu.Unlock()

	return e.limiter.Allow()
}

// RateLimitByIP applies per-IP rate limiting for unauthenticated endpoints.
// It relies on chi's RealIP middleware having rewritten r.RemoteAddr.
func RateLimitByIP(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	set := newLimiterSet[string](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !set.allow(clientIP(r)) {
				writeProblem(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies per-user rate limiting. Requests without a principal
// pass through.
func RateLimit(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	set := newLimiterSet[uuid.UUID](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if !set.allow(p.UserID) {
				writeProblem(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
