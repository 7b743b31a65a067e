package core

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window admission counter: it keeps, per
// nickname, the timestamps of the last accepted messages inside the
// trailing window. Stale entries are evicted lazily on each check.
type RateLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	history map[string][]time.Time
	now     func() time.Time
}

// NewRateLimiter allows max messages per nickname within window.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:     max,
		window:  window,
		history: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records and admits one message for nick unless the window is
// already full. Check and append happen under one lock so concurrent
// sends cannot both observe room under the limit.
func (rl *RateLimiter) Allow(nick string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	hist := rl.evictLocked(nick, now)
	if len(hist) >= rl.max {
		rl.history[nick] = hist
		return false
	}
	rl.history[nick] = append(hist, now)
	return true
}

// WaitTime returns how long until the oldest retained timestamp leaves the
// window. Zero if nick has no history.
func (rl *RateLimiter) WaitTime(nick string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	hist := rl.history[nick]
	if len(hist) == 0 {
		return 0
	}
	wait := rl.window - rl.now().Sub(hist[0])
	if wait < 0 {
		return 0
	}
	return wait
}

// Reset drops nick's history. Called on disconnect so reused nicknames do
// not accumulate state across reconnects.
func (rl *RateLimiter) Reset(nick string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, nick)
}

func (rl *RateLimiter) evictLocked(nick string, now time.Time) []time.Time {
	hist := rl.history[nick]
	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(hist) && hist[i].Before(cutoff) {
		i++
	}
	return hist[i:]
}
