package security

import (
	"sync"
	"time"
)

// RateLimiter is a sliding window over recent request timestamps. It is safe
// for concurrent use.
type RateLimiter struct {
	mu    sync.Mutex
	now   func() time.Time
	stamp []time.Time
}

// NewRateLimiter returns a limiter reading time from now, or time.Now if nil.
func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{now: now}
}

// Allow records a request and returns true if fewer than maxRequests were
// recorded within window. A denied call records nothing.
func (r *RateLimiter) Allow(maxRequests int, window time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now, window)
	if maxRequests <= 0 || len(r.stamp) >= maxRequests {
		return false
	}
	r.stamp = append(r.stamp, now)
	return true
}

func (r *RateLimiter) Remaining(maxRequests int, window time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune(r.now(), window)
	if left := maxRequests - len(r.stamp); left > 0 {
		return left
	}
	return 0
}

// RetryAfter is how long until the oldest recorded request leaves the window.
func (r *RateLimiter) RetryAfter(window time.Duration) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now, window)
	if len(r.stamp) == 0 {
		return 0
	}
	return window - now.Sub(r.stamp[0])
}

func (r *RateLimiter) prune(now time.Time, window time.Duration) {
	keep := r.stamp[:0]
	for _, ts := range r.stamp {
		if now.Sub(ts) < window {
			keep = append(keep, ts)
		}
	}
	r.stamp = keep
}
