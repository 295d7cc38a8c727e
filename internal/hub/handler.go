package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/aice-relay/internal/domain"
	"github.com/ashureev/aice-relay/internal/identity"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

const (
	defaultRetryDelay = 5 * time.Second
	wsWriteTimeout    = 10 * time.Second
)

// RoomLookup resolves rooms for access checks.
type RoomLookup interface {
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
}

// HandlerConfig tunes the viewer transports.
type HandlerConfig struct {
	RetryDelay     time.Duration
	OriginPatterns []string
	IsDev          bool
}

// Handler exposes hub subscriptions over SSE and WebSocket.
type Handler struct {
	hub   *Hub
	rooms RoomLookup
	cfg   HandlerConfig
}

// NewHandler creates a viewer handler.
func NewHandler(hub *Hub, rooms RoomLookup, cfg HandlerConfig) *Handler {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	cfg.OriginPatterns = originHosts(cfg.OriginPatterns)
	return &Handler{hub: hub, rooms: rooms, cfg: cfg}
}

// originHosts reduces origin URLs to the host patterns websocket.Accept
// matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}

// RegisterRoutes registers the stream routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sse/chat/{roomID}", h.HandleSSE)
	r.Get("/ws/chat/{roomID}", h.HandleWebSocket)
}

// HandleConnections reports subscriber counts per room.
func (h *Handler) HandleConnections(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.hub.ActiveConnections()); err != nil {
		slog.Warn("failed to encode connection counts", "error", err)
	}
}

// authorize writes an error response and returns false unless the caller
// owns the room.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, roomID string) bool {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return false
	}

	room, err := h.rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		slog.Error("Failed to load room for stream", "error", err, "room_id", roomID)
		http.Error(w, `{"error": "internal error"}`, http.StatusInternalServerError)
		return false
	}
	if room == nil || !room.OwnedBy(userID) {
		slog.Warn("Stream access denied", "room_id", roomID, "user_id", userID)
		http.Error(w, `{"error": "forbidden"}`, http.StatusForbidden)
		return false
	}
	return true
}

// HandleSSE streams a room's events as server-sent events.
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if !h.authorize(w, r, roomID) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error": "streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if _, err := fmt.Fprintf(w, "retry: %d\n\n", h.cfg.RetryDelay.Milliseconds()); err != nil {
		slog.Warn("failed to write SSE retry header", "error", err, "room_id", roomID)
		return
	}
	flusher.Flush()

	sub := h.hub.Subscribe(roomID)
	defer h.hub.Unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			slog.Info("SSE viewer disconnected", "room_id", roomID, "subscriber_id", sub.ID())
			return
		case <-sub.Done():
			drainSSE(w, sub)
			flusher.Flush()
			slog.Info("SSE subscription closed by hub", "room_id", roomID, "subscriber_id", sub.ID())
			return
		case ev := <-sub.Events():
			if err := writeEvent(w, ev); err != nil {
				slog.Warn("failed to write SSE event", "error", err, "room_id", roomID, "event", ev.Name)
				return
			}
			flusher.Flush()
		}
	}
}

func drainSSE(w io.Writer, sub *Subscription) {
	for {
		select {
		case ev := <-sub.Events():
			if err := writeEvent(w, ev); err != nil {
				return
			}
		default:
			return
		}
	}
}

// wsFrame is the JSON frame sent to WebSocket viewers.
type wsFrame struct {
	ID    string `json:"id"`
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// HandleWebSocket streams a room's events as JSON text frames.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if !h.authorize(w, r, roomID) {
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.cfg.OriginPatterns,
		InsecureSkipVerify: h.cfg.IsDev,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "room_id", roomID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "room_id", roomID)
		}
	}()

	// Viewers never send; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := ws.CloseRead(r.Context())

	sub := h.hub.Subscribe(roomID)
	defer h.hub.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			slog.Info("WebSocket viewer disconnected", "room_id", roomID, "subscriber_id", sub.ID())
			return
		case <-sub.Done():
			return
		case ev := <-sub.Events():
			if err := writeFrame(ctx, ws, ev); err != nil {
				slog.Debug("WebSocket write error", "error", err, "room_id", roomID)
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, ws *websocket.Conn, ev Event) error {
	data, err := json.Marshal(wsFrame{ID: ev.ID, Event: ev.Name, Data: ev.Data})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}

// writeEvent renders ev in text/event-stream framing. String data is written
// as is; anything else is JSON encoded.
func writeEvent(w io.Writer, ev Event) error {
	var data string
	switch v := ev.Data.(type) {
	case string:
		data = v
	case []byte:
		data = string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode event data: %w", err)
		}
		data = string(b)
	}

	var sb strings.Builder
	if ev.ID != "" {
		fmt.Fprintf(&sb, "id: %s\n", ev.ID)
	}
	fmt.Fprintf(&sb, "event: %s\n", ev.Name)
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&sb, "data: %s\n", line)
	}
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
