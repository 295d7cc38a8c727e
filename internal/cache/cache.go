// Package cache provides the fast shared state the relay keeps outside the
// durable store: per-room turn counters and in-flight guards.
package cache

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Counter is an integer counter store with set-if-absent seeding.
type Counter interface {
	// SeedIfAbsent stores value under key only if key does not exist.
	// It reports whether the value was written.
	SeedIfAbsent(ctx context.Context, key string, value int64) (bool, error)

	// Incr atomically increments key and returns the new value. A missing
	// key counts as 0.
	Incr(ctx context.Context, key string) (int64, error)

	// Get returns the current value and whether the key exists.
	Get(ctx context.Context, key string) (int64, bool, error)
}

// Guard is an exclusion flag keyed by string.
type Guard interface {
	// Acquire sets key if absent and reports whether the caller now holds it.
	// The returned token identifies this holder for Release.
	// ttl bounds how long a crashed holder can block others; 0 means no expiry.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// Release clears key only while it is still held under token. A guard
	// that expired and was taken by someone else is left alone.
	Release(ctx context.Context, key, token string) error
}

// TurnKey returns the counter key for a room.
func TurnKey(roomID string) string {
	return "turn:" + roomID
}

// TitleGuardKey returns the in-flight guard key for a room's title job.
func TitleGuardKey(roomID string) string {
	return "title:inflight:" + roomID
}

// Backend is a cache holding both counters and guards.
type Backend interface {
	Counter
	Guard
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Backend = (*Redis)(nil)
	_ Backend = (*Memory)(nil)
)

func newGuardToken() string {
	return ulid.Make().String()
}
