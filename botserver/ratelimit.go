package botserver

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitError reports which window was exhausted.
type RateLimitError struct {
	Window string
	Limit  int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s limit exceeded (%d requests)", e.Window, e.Limit)
}

// RateLimiter keeps a sliding log of request times per key and enforces
// per-minute, per-hour and per-day budgets. A zero budget disables its window.
type RateLimiter struct {
	maxPerMinute int
	maxPerHour   int
	maxPerDay    int
	now          func() time.Time

	mu       sync.Mutex
	requests map[string][]time.Time
}

func NewRateLimiter(maxPerMinute, maxPerHour, maxPerDay int) *RateLimiter {
	return &RateLimiter{
		maxPerMinute: maxPerMinute,
		maxPerHour:   maxPerHour,
		maxPerDay:    maxPerDay,
		now:          time.Now,
		requests:     make(map[string][]time.Time),
	}
}

// Allow records a request for key, or returns a *RateLimitError without
// recording it.
func (rl *RateLimiter) Allow(key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoffDay := now.Add(-24 * time.Hour)
	cutoffHour := now.Add(-1 * time.Hour)
	cutoffMinute := now.Add(-1 * time.Minute)

	valid := rl.requests[key][:0]
	hourly, minutely := 0, 0
	for _, t := range rl.requests[key] {
		if !t.After(cutoffDay) {
			continue
		}
		valid = append(valid, t)
		if t.After(cutoffHour) {
			hourly++
		}
		if t.After(cutoffMinute) {
			minutely++
		}
	}
	rl.requests[key] = valid

	if rl.maxPerDay > 0 && len(valid) >= rl.maxPerDay {
		return &RateLimitError{Window: "daily", Limit: rl.maxPerDay}
	}
	if rl.maxPerHour > 0 && hourly >= rl.maxPerHour {
		return &RateLimitError{Window: "hourly", Limit: rl.maxPerHour}
	}
	if rl.maxPerMinute > 0 && minutely >= rl.maxPerMinute {
		return &RateLimitError{Window: "per-minute", Limit: rl.maxPerMinute}
	}

	rl.requests[key] = append(rl.requests[key], now)
	return nil
}

func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.requests, key)
}
