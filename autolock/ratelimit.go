package autolock

import (
	"sync"
	"time"
)

// RateLimiter is a fixed-window limiter: the first call in a window is
// allowed, every later call in the same window is dropped. The window resets
// only when it has fully elapsed.
type RateLimiter struct {
	mu          sync.Mutex
	window      time.Duration
	now         func() time.Time
	windowStart time.Time
}

func NewRateLimiter(window time.Duration) *RateLimiter {
	return &RateLimiter{
		window: window,
		now:    time.Now,
	}
}

// NewRateLimiterWithClock injects the clock, for tests.
func NewRateLimiterWithClock(window time.Duration, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		window: window,
		now:    now,
	}
}

func (l *RateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		return true
	}
	return false
}

// Reset clears the current window so the next call is allowed again.
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.windowStart = time.Time{}
}
