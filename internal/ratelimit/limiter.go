package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter bounds attempts per client identity within a fixed window. Allow
// returns false when the client has exhausted its budget for the current
// window.
type Limiter interface {
	Allow(ctx context.Context, clientKey string) (bool, error)
}

// MemoryLimiter is a single-process fixed-window limiter for tests and local
// development. Production deployments run multiple instances and must use the
// Redis limiter so the counter is shared.
type MemoryLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string]*windowEntry
	now     func() time.Time
}

type windowEntry struct {
	count   int
	started time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:     max,
		window:  window,
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[clientKey]
	if !ok || now.Sub(e.started) >= l.window {
		l.entries[clientKey] = &windowEntry{count: 1, started: now}
		return true, nil
	}
	if e.count >= l.max {
		return false, nil
	}
	e.count++
	return true, nil
}
