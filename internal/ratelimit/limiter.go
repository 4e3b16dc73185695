// Package ratelimit implements a keyed sliding-window request limiter and
// the HTTP middleware that enforces it.
package ratelimit

import (
	"sync"
	"time"

	"studytimer/internal/clock"
)

// Limiter admits at most limit requests per key within any window.
type Limiter struct {
	limit  int
	window time.Duration
	clock  clock.Clock

	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

// New creates a limiter. A nil clock uses the wall clock.
func New(limit int, window time.Duration, source clock.Clock) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if source == nil {
		source = clock.Real()
	}
	return &Limiter{
		limit:  limit,
		window: window,
		clock:  source,
		hits:   make(map[string][]time.Time),
	}
}

// Allow records a request for key. When the budget is exhausted it
// returns false and how long until the oldest request leaves the window.
func (limiter *Limiter) Allow(key string) (bool, time.Duration) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := limiter.clock.Now()
	limiter.sweepLocked(now)

	recent := prune(limiter.hits[key], now.Add(-limiter.window))
	if len(recent) >= limiter.limit {
		limiter.hits[key] = recent
		return false, recent[0].Add(limiter.window).Sub(now)
	}
	limiter.hits[key] = append(recent, now)
	return true, 0
}

// Remaining returns how many requests key may still make right now.
func (limiter *Limiter) Remaining(key string) int {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := limiter.clock.Now()
	recent := prune(limiter.hits[key], now.Add(-limiter.window))
	limiter.hits[key] = recent
	return max(limiter.limit-len(recent), 0)
}

// Limit returns the per-window budget.
func (limiter *Limiter) Limit() int {
	return limiter.limit
}

// sweepLocked drops idle keys at most once per window.
func (limiter *Limiter) sweepLocked(now time.Time) {
	if now.Sub(limiter.lastSweep) < limiter.window {
		return
	}
	limiter.lastSweep = now
	cutoff := now.Add(-limiter.window)
	for key, stamps := range limiter.hits {
		if recent := prune(stamps, cutoff); len(recent) == 0 {
			delete(limiter.hits, key)
		} else {
			limiter.hits[key] = recent
		}
	}
}

// prune drops timestamps at or before cutoff. stamps are in ascending order.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	index := 0
	for index < len(stamps) && !stamps[index].After(cutoff) {
		index++
	}
	return stamps[index:]
}
