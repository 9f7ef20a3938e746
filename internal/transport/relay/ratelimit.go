package relay

import (
	"sync"
	"time"
)

// roomCreateLimit is the rendezvous-side rate limit: at most this many
// room creations per source IP per minute (spec §4.H admission).
const roomCreateLimit = 10

// RateLimiter enforces roomCreateLimit per source IP using a sliding
// one-minute window.
type RateLimiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
}

// NewRateLimiter constructs an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{events: make(map[string][]time.Time)}
}

// Allow records a room-creation attempt from addr at now and reports
// whether it's within the per-minute limit.
func (rl *RateLimiter) Allow(addr string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-time.Minute)
	events := rl.events[addr]
	kept := events[:0]
	for _, t := range events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= roomCreateLimit {
		rl.events[addr] = kept
		return false
	}
	rl.events[addr] = append(kept, now)
	return true
}
