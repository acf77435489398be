/*
Package chat contains the core logic for room sessions.

This file defines the sliding-window message rate limiter keyed by sender
identity. It guards message sends only; reactions, typing, and moderation
actions are not limited.
*/
package chat

import (
	"sync"
	"time"
)

const (
	// RateLimitWindow is the sliding window over which sends are counted.
	RateLimitWindow = 60 * time.Second

	// RateLimitMax is the maximum number of sends per identity per window.
	RateLimitMax = 30
)

// MessageLimiter enforces a per-identity sliding-window send cap. Timestamps
// older than the window are pruned on every call; an identity with no recent
// activity is dropped from the map so memory stays bounded.
type MessageLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	now    func() time.Time
	sends  map[string][]time.Time
}

// NewMessageLimiter returns a limiter with the default window and cap.
func NewMessageLimiter() *MessageLimiter {
	return &MessageLimiter{
		window: RateLimitWindow,
		max:    RateLimitMax,
		now:    time.Now,
		sends:  make(map[string][]time.Time),
	}
}

// WithClock overrides the limiter's clock. Test hook.
func (l *MessageLimiter) WithClock(now func() time.Time) *MessageLimiter {
	l.now = now
	return l
}

// Allow reports whether the identity may send another message. The event is
// recorded only when allowed, so rejected attempts do not extend the window.
func (l *MessageLimiter) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.sends[identity][:0]
	for _, t := range l.sends[identity] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.max {
		l.sends[identity] = recent
		return false
	}

	l.sends[identity] = append(recent, now)
	return true
}

// Sweep removes identities whose every recorded send has aged out of the
// window. Called periodically by the gateway owner.
func (l *MessageLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	removed := 0

	for identity, times := range l.sends {
		stale := true
		for _, t := range times {
			if t.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(l.sends, identity)
			removed++
		}
	}
	return removed
}
