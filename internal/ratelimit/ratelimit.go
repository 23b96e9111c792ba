// Package ratelimit caps submissions per client identity within a sliding
// window. Two implementations exist: an in-process one, and a Redis-backed
// one for deployments where several instances must share a window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter records and checks submission attempts per client key. Allow
// returns false when the key has exhausted its window; when it returns
// true, the attempt has been recorded.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Memory is a mutex-guarded sliding-window limiter keyed by client
// identity. State is process-local and resets on restart.
type Memory struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu  sync.Mutex
	log map[string][]time.Time
}

func NewMemory(max int, window time.Duration) *Memory {
	return &Memory{
		max:    max,
		window: window,
		now:    time.Now,
		log:    make(map[string][]time.Time),
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.window)
	valid := m.log[key][:0]
	for _, ts := range m.log[key] {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	if len(valid) >= m.max {
		m.log[key] = valid
		return false, nil
	}
	m.log[key] = append(valid, now)
	return true, nil
}
