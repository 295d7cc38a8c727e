// Package turn assigns per-room turn numbers.
package turn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/aice-relay/internal/cache"
)

// MaxTurnReader reads the durable maximum turn index for a room.
type MaxTurnReader interface {
	MaxTurnIndex(ctx context.Context, roomID string) (int, error)
}

// Allocator hands out strictly increasing turn numbers per room. The cache
// holds the live counter; the durable store is the source of truth when the
// cache is cold.
type Allocator struct {
	counter cache.Counter
	store   MaxTurnReader
	logger  *slog.Logger
}

// NewAllocator creates an Allocator.
func NewAllocator(counter cache.Counter, store MaxTurnReader, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{counter: counter, store: store, logger: logger}
}

// NextTurn opens a new turn in roomID and returns its index (>= 1).
//
// A cold counter is seeded from the durable maximum with set-if-absent, so
// concurrent first messages seed once and then increment to distinct values.
func (a *Allocator) NextTurn(ctx context.Context, roomID string) (int, error) {
	key := cache.TurnKey(roomID)

	_, exists, err := a.counter.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read turn counter: %w", err)
	}
	if !exists {
		maxTurn, err := a.store.MaxTurnIndex(ctx, roomID)
		if err != nil {
			return 0, fmt.Errorf("read durable max turn: %w", err)
		}
		seeded, err := a.counter.SeedIfAbsent(ctx, key, int64(maxTurn))
		if err != nil {
			return 0, fmt.Errorf("seed turn counter: %w", err)
		}
		if seeded {
			a.logger.Debug("Seeded turn counter", "room_id", roomID, "max_turn", maxTurn)
		}
	}

	next, err := a.counter.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("increment turn counter: %w", err)
	}
	return int(next), nil
}

// CurrentTurn returns the in-progress turn of roomID. On a cache miss it falls
// back to the durable maximum, or 1 when the room has no messages.
func (a *Allocator) CurrentTurn(ctx context.Context, roomID string) (int, error) {
	n, exists, err := a.counter.Get(ctx, cache.TurnKey(roomID))
	if err != nil {
		a.logger.Warn("Turn counter read failed, using durable store", "room_id", roomID, "error", err)
	}
	if err == nil && exists && n > 0 {
		return int(n), nil
	}

	maxTurn, err := a.store.MaxTurnIndex(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("read durable max turn: %w", err)
	}
	if maxTurn < 1 {
		return 1, nil
	}
	return maxTurn, nil
}
