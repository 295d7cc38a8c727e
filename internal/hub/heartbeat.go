package hub

import (
	"context"
	"time"

	"github.com/ashureev/aice-relay/internal/events"
)

// DefaultHeartbeatInterval keeps idle streams alive through proxies that cut
// connections after 30-60s of silence.
const DefaultHeartbeatInterval = 25 * time.Second

const heartbeatData = "keep-alive"

// StartHeartbeat runs a background goroutine that pushes a ping to every
// active room each interval until ctx is canceled.
func (h *Hub) StartHeartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		h.logger.Info("Heartbeat worker started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				h.Heartbeat()
			case <-ctx.Done():
				h.logger.Info("Heartbeat worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Heartbeat pushes one ping to every active room.
func (h *Hub) Heartbeat() {
	for roomID := range h.ActiveConnections() {
		h.Push(roomID, events.PushPing, heartbeatData)
	}
}
