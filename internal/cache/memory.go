package cache

import (
	"context"
	"sync"
	"time"
)

var (
	_ Counter = (*Memory)(nil)
	_ Guard   = (*Memory)(nil)
)

// Memory implements Counter and Guard in process. It is used when no Redis
// URL is configured and in tests.
type Memory struct {
	mu       sync.Mutex
	counters map[string]int64
	guards   sync.Map // key -> guardHolder
	now      func() time.Time
}

type guardHolder struct {
	token  string
	expiry time.Time // zero = none
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		counters: make(map[string]int64),
		now:      time.Now,
	}
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// SeedIfAbsent stores value under key if key does not exist.
func (m *Memory) SeedIfAbsent(_ context.Context, key string, value int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.counters[key]; ok {
		return false, nil
	}
	m.counters[key] = value
	return true, nil
}

// Incr atomically increments key.
func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

// Get returns the value stored at key.
func (m *Memory) Get(_ context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.counters[key]
	return n, ok, nil
}

// Acquire sets key if absent or expired.
func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	h := guardHolder{token: newGuardToken()}
	if ttl > 0 {
		h.expiry = m.now().Add(ttl)
	}
	for {
		existing, loaded := m.guards.LoadOrStore(key, h)
		if !loaded {
			return h.token, true, nil
		}
		held := existing.(guardHolder)
		if held.expiry.IsZero() || m.now().Before(held.expiry) {
			return "", false, nil
		}
		// Expired holder: replace it only if nobody else did first.
		if m.guards.CompareAndSwap(key, existing, h) {
			return h.token, true, nil
		}
	}
}

// Release clears key if token still holds it.
func (m *Memory) Release(_ context.Context, key, token string) error {
	existing, ok := m.guards.Load(key)
	if !ok || existing.(guardHolder).token != token {
		return nil
	}
	m.guards.CompareAndDelete(key, existing)
	return nil
}
