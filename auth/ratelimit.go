package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitCleanupThreshold and rateLimitCleanupInterval mirror the
// reference server's lazy-cleanup policy: only sweep stale entries once the
// table has grown large, and no more often than every ten seconds.
const (
	rateLimitCleanupThreshold = 1000
	rateLimitCleanupInterval  = 10 * time.Second
)

// RateLimiter throttles requests per remote address to one per delay,
// grounded in the reference server's apply_rate_limit: each address gets a
// single-token bucket that refills after delay elapses, with lazy cleanup of
// addresses that have gone quiet.
type RateLimiter struct {
	mu          sync.Mutex
	delay       time.Duration
	limiters    map[string]*visitor
	lastCleaned time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing one request per delay interval
// for each distinct remote address.
func NewRateLimiter(delay time.Duration) *RateLimiter {
	return &RateLimiter{
		delay:       delay,
		limiters:    make(map[string]*visitor),
		lastCleaned: time.Time{},
	}
}

// Allow reports whether a request from remoteAddr may proceed now. A denied
// request does not reset the address's bucket — it simply stays due.
func (r *RateLimiter) Allow(remoteAddr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.limiters[remoteAddr]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(r.delay), 1)}
		r.limiters[remoteAddr] = v
	}
	v.lastSeen = time.Now()

	r.cleanupLocked()

	return v.limiter.Allow()
}

// cleanupLocked drops visitors unseen for longer than the refill delay, but
// only when the table is large and we haven't just cleaned it — matching the
// reference server's lazy cleanup trigger.
func (r *RateLimiter) cleanupLocked() {
	if len(r.limiters) < rateLimitCleanupThreshold {
		return
	}
	now := time.Now()
	if now.Sub(r.lastCleaned) < rateLimitCleanupInterval {
		return
	}
	for addr, v := range r.limiters {
		if now.Sub(v.lastSeen) > r.delay {
			delete(r.limiters, addr)
		}
	}
	r.lastCleaned = now
}
