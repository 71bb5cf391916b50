package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/yearzendwise/Authentik-sub002/internal/server/respond"
)

type rlEntry struct {
	count    int
	windowAt time.Time
}

// sweepInterval bounds how often Allow prunes expired entries.
const sweepInterval = 5 * time.Minute

// RateLimiter is an in-memory fixed-window rate limiter keyed by arbitrary strings
// (typically client IPs). Counters reset when their window elapses; expired entries
// are swept opportunistically on Allow so the map does not grow unbounded and no
// janitor goroutine is needed.
type RateLimiter struct {
	mu        sync.Mutex
	entries   map[string]*rlEntry
	nextSweep time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		entries:   make(map[string]*rlEntry),
		nextSweep: time.Now().Add(sweepInterval),
	}
}

// Allow reports whether key may proceed given limit requests per window.
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.After(rl.nextSweep) {
		rl.sweepLocked(now)
		rl.nextSweep = now.Add(sweepInterval)
	}

	e, ok := rl.entries[key]
	if !ok || now.After(e.windowAt) {
		rl.entries[key] = &rlEntry{count: 1, windowAt: now.Add(window)}
		return true
	}
	e.count++
	return e.count <= limit
}

// Cleanup removes expired entries immediately.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.sweepLocked(time.Now())
}

func (rl *RateLimiter) sweepLocked(now time.Time) {
	for key, e := range rl.entries {
		if now.After(e.windowAt) {
			delete(rl.entries, key)
		}
	}
}

// RateLimit throttles requests per client IP. Over-limit requests get 429 with
// code RateLimited. Applied to credential endpoints only.
func RateLimit(limiter *RateLimiter, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(RealIP(r), limit, window) {
				respond.Error(w, http.StatusTooManyRequests, respond.CodeRateLimited, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
