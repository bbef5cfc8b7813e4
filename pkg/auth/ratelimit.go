package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter checks whether a request should be allowed based on the
// caller's identity.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// InProcessLimiter is a fixed-window rate limiter that tracks request
// counts per subject in memory. Limits are configured per role, with a
// fallback for roles without an override.
type InProcessLimiter struct {
	roles      map[string]int // requests per minute by role
	defaultRPM int
	mu         sync.Mutex
	counters   map[string]*counter
}

type counter struct {
	count    int
	windowAt time.Time
}

// NewInProcessLimiter creates a rate limiter with per-role configuration.
// A rate of 0 (for a role or the default) means unlimited.
func NewInProcessLimiter(roles map[string]int, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		roles:      roles,
		defaultRPM: defaultRPM,
		counters:   make(map[string]*counter),
	}
}

// Allow checks if the request is within the rate limit.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	rpm := l.defaultRPM
	if r, ok := l.roles[identity.Role]; ok {
		rpm = r
	}

	if rpm <= 0 {
		return nil // no limit
	}

	key := identity.Subject + ":" + identity.Role

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= time.Minute {
		// New window.
		l.counters[key] = &counter{count: 1, windowAt: now}
		return nil
	}

	c.count++
	if c.count > rpm {
		return ErrTooManyRequests
	}

	return nil
}
