// Package title derives a room's title from its first message in the
// background.
package title

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/aice-relay/internal/cache"
	"github.com/ashureev/aice-relay/internal/domain"
	"github.com/ashureev/aice-relay/internal/metrics"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 200
	defaultTimeout   = 3 * time.Second
	defaultGuardTTL  = 30 * time.Second
	callBuffer       = 500 * time.Millisecond
	closeTimeout     = 5 * time.Second
)

// Outcome label values.
const (
	outcomeSummarized = "summarized"
	outcomeFallback   = "fallback"
	outcomeDuplicate  = "duplicate"
	outcomeRejected   = "rejected"
	outcomeNoRoom     = "no_room"
)

// RoomStore is the persistence the coordinator needs.
type RoomStore interface {
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	UpdateRoomTitle(ctx context.Context, roomID, title string) error
}

// Config sizes the worker pool and bounds the summarizer call.
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	GuardTTL  time.Duration
}

// maxHoldTime bounds how long a guard can be held: a full queue ahead of the
// job plus the job's own summarizer call.
func (cfg Config) maxHoldTime() time.Duration {
	perJob := cfg.Timeout + callBuffer
	waves := (cfg.QueueSize + cfg.Workers - 1) / cfg.Workers
	return time.Duration(waves+1) * perJob
}

type job struct {
	roomID  string
	message string
	token   string // guard token; empty when scheduled unguarded
}

// Coordinator runs title jobs on a bounded worker pool. At most one job per
// room is queued or running at a time.
type Coordinator struct {
	rooms      RoomStore
	guard      cache.Guard
	summarizer Summarizer
	cfg        Config
	logger     *slog.Logger

	queue  chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewCoordinator starts the worker pool. summarizer may be nil, in which
// case titles always come from the local fallback.
func NewCoordinator(rooms RoomStore, guard cache.Guard, summarizer Summarizer, cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.GuardTTL <= 0 {
		cfg.GuardTTL = defaultGuardTTL
	}
	if floor := cfg.maxHoldTime(); cfg.GuardTTL < floor {
		cfg.GuardTTL = floor
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		rooms:      rooms,
		guard:      guard,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger,
		queue:      make(chan job, cfg.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	c.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go c.worker()
	}
	return c
}

// TryUpdateTitleAsync schedules a title job for roomID. It returns false when
// a job for the room is already in flight, the queue is full, or the
// coordinator is closed.
func (c *Coordinator) TryUpdateTitleAsync(ctx context.Context, roomID, firstMessage string) bool {
	key := cache.TitleGuardKey(roomID)
	token, acquired, err := c.guard.Acquire(ctx, key, c.cfg.GuardTTL)
	if err != nil {
		// Without the guard a concurrent trigger may run the job twice.
		c.logger.Warn("[TITLE] Guard unavailable, scheduling unguarded", "room_id", roomID, "error", err)
	} else if !acquired {
		metrics.TitleOutcomes.WithLabelValues(outcomeDuplicate).Inc()
		c.logger.Debug("[TITLE] Already in flight", "room_id", roomID)
		return false
	}

	j := job{roomID: roomID, message: firstMessage, token: token}

	c.mu.RLock()
	queued := false
	if !c.closed {
		select {
		case c.queue <- j:
			queued = true
		default:
		}
	}
	c.mu.RUnlock()

	if !queued {
		metrics.TitleOutcomes.WithLabelValues(outcomeRejected).Inc()
		c.logger.Warn("[TITLE] Job rejected", "room_id", roomID, "queue_len", len(c.queue))
		c.release(j)
		return false
	}
	return true
}

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for j := range c.queue {
		c.run(j)
	}
}

func (c *Coordinator) run(j job) {
	defer c.release(j)

	room, err := c.rooms.GetRoom(c.ctx, j.roomID)
	if err != nil {
		c.logger.Error("[TITLE] Failed to load room", "room_id", j.roomID, "error", err)
		return
	}
	if room == nil {
		metrics.TitleOutcomes.WithLabelValues(outcomeNoRoom).Inc()
		c.logger.Info("[TITLE] Room gone before title job ran", "room_id", j.roomID)
		return
	}

	title := c.resolve(j)
	if err := c.rooms.UpdateRoomTitle(c.ctx, j.roomID, title); err != nil {
		c.logger.Error("[TITLE] Failed to save title", "room_id", j.roomID, "error", err)
		return
	}
	c.logger.Info("[TITLE] Title updated", "room_id", j.roomID, "title", title)
}

// resolve returns the summarizer's title, or the local fallback when the
// summarizer is absent, fails, or yields nothing usable.
func (c *Coordinator) resolve(j job) string {
	if c.summarizer != nil {
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.Timeout+callBuffer)
		title, err := c.summarizer.Summarize(ctx, j.message)
		cancel()

		if err != nil {
			c.logger.Warn("[TITLE] Summarizer failed, using fallback", "room_id", j.roomID, "error", err)
		} else if title = Sanitize(title); strings.TrimSpace(title) != "" {
			metrics.TitleOutcomes.WithLabelValues(outcomeSummarized).Inc()
			return title
		}
	}
	metrics.TitleOutcomes.WithLabelValues(outcomeFallback).Inc()
	return Fallback(j.message)
}

func (c *Coordinator) release(j job) {
	if j.token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.guard.Release(ctx, cache.TitleGuardKey(j.roomID), j.token); err != nil {
		c.logger.Warn("[TITLE] Failed to release guard", "room_id", j.roomID, "error", err)
	}
}

// Close stops accepting jobs, lets queued jobs drain, and waits up to a few
// seconds before aborting in-flight summarizer calls.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.queue)
	c.mu.Unlock()

	c.logger.Info("[TITLE] Closing", "queue_remaining", len(c.queue))

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("[TITLE] Workers stopped gracefully")
	case <-time.After(closeTimeout):
		c.logger.Warn("[TITLE] Worker shutdown timeout")
		c.cancel()
		<-done
	}
	c.cancel()
	return nil
}
