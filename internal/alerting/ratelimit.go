package alerting

import (
	"sync"
	"time"
)

// rateWindow is the counter state of one key
type rateWindow struct {
	start    time.Time
	count    int
	duration time.Duration
}

// RateLimiter counts sends per key inside a fixed window
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		windows: make(map[string]*rateWindow),
		now:     now,
	}
}

// Allow reports whether one more send is permitted for key and, if so, counts it
func (l *RateLimiter) Allow(key string, maxCount int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok {
		w = &rateWindow{start: now}
		l.windows[key] = w
	}
	w.duration = window

	if now.Sub(w.start) >= window {
		w.start = now
		w.count = 1
		return true
	}

	if w.count >= maxCount {
		return false
	}
	w.count++
	return true
}

// Count returns the number of sends counted in the current window of key
func (l *RateLimiter) Count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || l.now().Sub(w.start) >= w.duration {
		return 0
	}
	return w.count
}

// Prune drops keys whose window has elapsed and returns how many were removed
func (l *RateLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.start) >= w.duration {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Reset clears the counter of key
func (l *RateLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}
