package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/NordCoder/Gatehouse/internal/domain/auth"
)

var _ auth.RateLimiter = (*Memory)(nil)

type window struct {
	count   int
	resetAt time.Time
}

// Memory is an in-process fixed-window limiter with the same semantics as the
// Redis implementation. It serves tests and single-node development; windows
// are pruned lazily on access.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		windows: make(map[string]*window),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Test hook.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Allow(_ context.Context, key string, limit int, windowDur time.Duration) (auth.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !w.resetAt.After(now) {
		w = &window{resetAt: now.Add(windowDur)}
		m.windows[key] = w
	}
	w.count++

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return auth.Decision{
		Allowed:   w.count <= limit,
		Remaining: remaining,
		ResetAt:   w.resetAt,
	}, nil
}
