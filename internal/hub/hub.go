// Package hub fans push events out to the live viewers of a room.
//
// Each room keeps its own subscriber list behind its own mutex, so pushes to
// different rooms never contend. A room entry exists only while it has at
// least one subscriber.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/aice-relay/internal/events"
	"github.com/ashureev/aice-relay/internal/metrics"
	"github.com/oklog/ulid/v2"
)

const (
	// DefaultBufferSize is the per-subscriber queue length used when none is set.
	DefaultBufferSize = 64

	// DefaultSendTimeout is how long a push waits on a full subscriber before
	// treating it as dead.
	DefaultSendTimeout = 2 * time.Second
)

// Event is one named push delivered to a subscriber. Data is either a plain
// string or a value that is encoded as JSON by the transport.
type Event struct {
	ID   string
	Name string
	Data any
}

// Subscription is one viewer's attachment to a room.
type Subscription struct {
	id     string
	roomID string
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// ID returns the subscription id.
func (s *Subscription) ID() string { return s.id }

// RoomID returns the room the subscription belongs to.
func (s *Subscription) RoomID() string { return s.roomID }

// Events returns the delivery channel. It is never closed; watch Done.
func (s *Subscription) Events() <-chan Event { return s.events }

// Done is closed once the hub has dropped the subscription.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscription) isDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// offer attempts a non-blocking send. A closed or full subscriber fails.
func (s *Subscription) offer(ev Event) bool {
	if s.isDone() {
		return false
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// offerWait sends ev, blocking until the subscriber makes room, closes, or
// ctx ends.
func (s *Subscription) offerWait(ctx context.Context, ev Event) bool {
	if s.offer(ev) {
		return true
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

type room struct {
	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

// Hub is the process-wide registry of room subscribers.
//
// Lock order is room.mu before Hub.mu.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	buffer int
	wait   time.Duration
	seq    atomic.Uint64
	logger *slog.Logger
}

// New creates a hub whose subscribers buffer up to bufferSize events. A push
// to a full subscriber waits up to sendTimeout for the viewer to catch up.
func New(bufferSize int, sendTimeout time.Duration, logger *slog.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]*room),
		buffer: bufferSize,
		wait:   sendTimeout,
		logger: logger,
	}
}

// Subscribe registers a new viewer for roomID and queues the "connected"
// confirmation as its first event.
func (h *Hub) Subscribe(roomID string) *Subscription {
	sub := &Subscription{
		id:     ulid.Make().String(),
		roomID: roomID,
		events: make(chan Event, h.buffer),
		done:   make(chan struct{}),
	}
	connected := Event{
		ID:   "connect-" + strconv.FormatInt(time.Now().UnixMilli(), 10),
		Name: events.PushConnected,
		Data: fmt.Sprintf("Successfully connected to room: %s", roomID),
	}

	for {
		r := h.roomFor(roomID)
		r.mu.Lock()
		if r.closed {
			// Lost a race with the room being emptied; it is gone from the map now.
			r.mu.Unlock()
			continue
		}
		r.subs = append(r.subs, sub)
		sub.offer(connected)
		r.mu.Unlock()
		break
	}

	metrics.HubSubscribers.Inc()
	h.logger.Info("[HUB] Subscribed", "room_id", roomID, "subscriber_id", sub.id)
	return sub
}

// Unsubscribe removes sub from its room. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	// Closing first releases a push that is waiting on this subscriber.
	sub.close()

	h.mu.RLock()
	r := h.rooms[sub.roomID]
	h.mu.RUnlock()

	if r != nil {
		r.mu.Lock()
		if h.removeLocked(sub.roomID, r, sub) {
			metrics.HubSubscribers.Dec()
		}
		r.mu.Unlock()
	}
}

// Push delivers an event to every subscriber of roomID. A full subscriber is
// given until the push's send timeout to drain; one that is still full then,
// or already closed, is removed after the pass. The rest still receive the
// event. Pushing to a room without subscribers does nothing.
func (h *Hub) Push(roomID, name string, data any) {
	h.mu.RLock()
	r := h.rooms[roomID]
	h.mu.RUnlock()
	if r == nil {
		return
	}

	ev := Event{ID: strconv.FormatUint(h.seq.Add(1), 10), Name: name, Data: data}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	// One deadline per push, shared by every slow subscriber.
	var ctx context.Context
	var failed []*Subscription
	for _, sub := range r.subs {
		if sub.offer(ev) {
			continue
		}
		if !sub.isDone() {
			if ctx == nil {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(context.Background(), h.wait)
				defer cancel()
			}
			if sub.offerWait(ctx, ev) {
				continue
			}
		}
		failed = append(failed, sub)
	}
	metrics.HubPushes.WithLabelValues(name).Inc()

	for _, sub := range failed {
		left := sub.isDone()
		if h.removeLocked(roomID, r, sub) {
			metrics.HubSubscribers.Dec()
			if !left {
				metrics.HubDeadSubscribers.Inc()
				h.logger.Warn("[HUB] Dropped subscriber after failed send",
					"room_id", roomID, "subscriber_id", sub.id, "event", name)
			}
		}
		sub.close()
	}
}

// ActiveConnections returns the subscriber count per room.
func (h *Hub) ActiveConnections() map[string]int {
	h.mu.RLock()
	snapshot := make(map[string]*room, len(h.rooms))
	for id, r := range h.rooms {
		snapshot[id] = r
	}
	h.mu.RUnlock()

	counts := make(map[string]int, len(snapshot))
	for id, r := range snapshot {
		r.mu.Lock()
		if n := len(r.subs); n > 0 {
			counts[id] = n
		}
		r.mu.Unlock()
	}
	return counts
}

// CloseRoom completes every subscription in roomID and forgets the room.
func (h *Hub) CloseRoom(roomID string) {
	h.mu.RLock()
	r := h.rooms[roomID]
	h.mu.RUnlock()
	if r == nil {
		return
	}

	r.mu.Lock()
	n := len(r.subs)
	for _, sub := range r.subs {
		sub.close()
	}
	r.subs = nil
	r.closed = true
	h.forget(roomID, r)
	r.mu.Unlock()

	metrics.HubSubscribers.Sub(float64(n))
	h.logger.Info("[HUB] Closed room", "room_id", roomID, "subscribers", n)
}

// Close completes every subscription in every room.
func (h *Hub) Close() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.CloseRoom(id)
	}
}

func (h *Hub) roomFor(roomID string) *room {
	h.mu.RLock()
	r := h.rooms[roomID]
	h.mu.RUnlock()
	if r != nil {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r = h.rooms[roomID]; r == nil {
		r = &room{}
		h.rooms[roomID] = r
	}
	return r
}

// removeLocked drops sub from r, deleting the room once it is empty. The
// caller holds r.mu. It reports whether sub was present.
func (h *Hub) removeLocked(roomID string, r *room, sub *Subscription) bool {
	idx := -1
	for i, s := range r.subs {
		if s == sub {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	r.subs = append(r.subs[:idx], r.subs[idx+1:]...)

	if len(r.subs) == 0 {
		r.closed = true
		h.forget(roomID, r)
	}
	return true
}

func (h *Hub) forget(roomID string, r *room) {
	h.mu.Lock()
	if h.rooms[roomID] == r {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()
}
