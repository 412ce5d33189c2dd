package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRateLimitBurst = 5
	limiterCleanupEvery   = 5 * time.Minute
	limiterIdleAfter      = 10 * time.Minute
)

// RateLimiter enforces per-key request rate limits using a token bucket.
type RateLimiter struct {
	limiters sync.Map // key → *limiterEntry
	r        rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rpm requests per minute per key.
// If rpm <= 0 the limiter always allows.
func NewRateLimiter(rpm, burst int) *RateLimiter {
	if burst <= 0 {
		burst = defaultRateLimitBurst
	}
	r := rate.Limit(0)
	if rpm > 0 {
		r = rate.Limit(float64(rpm) / 60.0)
	}
	return &RateLimiter{r: r, burst: burst}
}

// Allow reports whether a request from key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.r == 0 {
		return true
	}
	e := rl.getOrCreate(key)
	e.mu.Lock()
	e.lastSeen = time.Now()
	e.mu.Unlock()
	return e.limiter.Allow()
}

func (rl *RateLimiter) getOrCreate(key string) *limiterEntry {
	if v, ok := rl.limiters.Load(key); ok {
		return v.(*limiterEntry) //nolint:forcetypeassert // only *limiterEntry is stored
	}
	e := &limiterEntry{
		limiter:  rate.NewLimiter(rl.r, rl.burst),
		lastSeen: time.Now(),
	}
	actual, _ := rl.limiters.LoadOrStore(key, e)
	return actual.(*limiterEntry) //nolint:forcetypeassert // only *limiterEntry is stored
}

// Run drops idle keys periodically until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup(time.Now().Add(-limiterIdleAfter))
		}
	}
}

func (rl *RateLimiter) cleanup(cutoff time.Time) {
	rl.limiters.Range(func(key, value any) bool {
		e := value.(*limiterEntry) //nolint:forcetypeassert // only *limiterEntry is stored
		e.mu.Lock()
		idle := e.lastSeen.Before(cutoff)
		e.mu.Unlock()
		if idle {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// rateLimitMiddleware limits requests per client IP.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(clientIP(r)) {
			s.logger.Warn("rate limited",
				"client", clientIP(r),
				"path", r.URL.Path,
				"request_id", r.Context().Value(ctxKeyRequestID),
			)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of the request's remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
