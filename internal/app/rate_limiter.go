package app

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter keyed by sender (viewer id or session token).
// Keys without an attempt inside the window are evicted, at most once per interval.
type RateLimiter struct {
	mu        sync.Mutex
	history   map[string][]time.Time
	limit     int
	interval  time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// NewRateLimiter allows limit events per interval per key. limit <= 0 disables limiting.
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)
	if now.Sub(rl.lastSweep) >= rl.interval {
		rl.sweep(windowStart)
		rl.lastSweep = now
	}

	attempts := rl.history[key]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[key] = fresh
		return false
	}
	rl.history[key] = append(fresh, now)
	return true
}

// sweep drops keys whose newest attempt left the window. Attempts are appended in order.
func (rl *RateLimiter) sweep(windowStart time.Time) {
	for key, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, key)
		}
	}
}

// Forget drops the history of a sender that went away.
func (rl *RateLimiter) Forget(key string) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, key)
}

// Len reports how many senders are tracked.
func (rl *RateLimiter) Len() int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.history)
}
