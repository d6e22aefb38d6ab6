package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedWindowLimiter bounds requests per client key within a fixed time
// window, entirely in process memory.
//
// State is deliberately process-local: this service runs as a single
// instance and the limiter (like the kill switch) does not coordinate
// across processes. A best-effort fixed-window counter is acceptable here;
// exact fairness at window boundaries is not a correctness requirement.
type FixedWindowLimiter struct {
	mu          sync.Mutex
	windows     map[string]*window
	maxRequests int
	window      time.Duration
}

// window tracks one client key's current fixed window.
type window struct {
	start time.Time
	count int
}

// NewFixedWindowLimiter creates a limiter allowing maxRequests per key
// within each window.
// Example: NewFixedWindowLimiter(120, time.Minute) allows 120 requests
// per client per minute.
func NewFixedWindowLimiter(maxRequests int, windowSize time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		windows:     make(map[string]*window),
		maxRequests: maxRequests,
		window:      windowSize,
	}
}

// Allow checks whether a request from the given client key may proceed.
// Returns (allowed, remaining quota, window reset time, error). The error
// is always nil; the signature matches the middleware's RateLimiter
// interface so backends that can fail fit the same contract.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.window {
		// First request for this key, or the previous window expired.
		l.windows[key] = &window{start: now, count: 1}
		l.pruneLocked(now)
		return true, l.maxRequests - 1, now.Add(l.window), nil
	}

	reset := w.start.Add(l.window)
	if w.count >= l.maxRequests {
		return false, 0, reset, nil
	}

	w.count++
	return true, l.maxRequests - w.count, reset, nil
}

// MaxRequests returns the per-window request limit.
func (l *FixedWindowLimiter) MaxRequests() int {
	return l.maxRequests
}

// Reset clears the window for a key. Useful for tests and manual overrides.
func (l *FixedWindowLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// pruneLocked drops expired windows so the map does not grow with every
// client ever seen. Called with the mutex held, only on the window-create
// path to keep the per-request cost flat.
func (l *FixedWindowLimiter) pruneLocked(now time.Time) {
	if len(l.windows) < 4096 {
		return
	}
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, key)
		}
	}
}
