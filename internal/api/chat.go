package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/aice-relay/internal/domain"
	"github.com/ashureev/aice-relay/internal/identity"
	"github.com/ashureev/aice-relay/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ChatStore is the persistence the chat endpoints read and write.
type ChatStore interface {
	CreateRoom(ctx context.Context, room *domain.Room) error
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	ListRooms(ctx context.Context, ownerID string) ([]*domain.Room, error)
	ListMessages(ctx context.Context, roomID string) ([]*domain.Message, error)
}

// MessageIngress accepts user messages into the pipeline.
type MessageIngress interface {
	HandleUserMessage(ctx context.Context, roomID, userID, text string) (*pipeline.Accepted, error)
}

// ChatHandler handles room and message endpoints.
type ChatHandler struct {
	store   ChatStore
	ingress MessageIngress
	logger  *slog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(store ChatStore, ingress MessageIngress, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{store: store, ingress: ingress, logger: logger}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat/rooms", func(r chi.Router) {
		r.Get("/", h.ListRooms)
		r.Post("/", h.CreateRoom)
		r.Get("/{roomID}/messages", h.ListMessages)
		r.Post("/{roomID}/messages", h.SendMessage)
	})
}

type createRoomRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	TraceID   string `json:"traceId"`
	MessageID string `json:"messageId"`
}

// CreateRoom creates a room owned by the caller.
func (h *ChatHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createRoomRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = domain.DefaultRoomTitle
	}

	now := time.Now()
	room := &domain.Room{
		RoomID:    uuid.NewString(),
		OwnerID:   userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateRoom(r.Context(), room); err != nil {
		h.logger.Error("Failed to create room", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	h.logger.Info("Room created", "room_id", room.RoomID, "user_id", userID)
	JSON(w, http.StatusCreated, room)
}

// ListRooms returns the caller's rooms.
func (h *ChatHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rooms, err := h.store.ListRooms(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list rooms", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	if rooms == nil {
		rooms = []*domain.Room{}
	}
	JSON(w, http.StatusOK, rooms)
}

// ListMessages returns a room's history, oldest first.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if _, ok := h.ownedRoom(w, r, roomID); !ok {
		return
	}

	msgs, err := h.store.ListMessages(r.Context(), roomID)
	if err != nil {
		h.logger.Error("Failed to list messages", "error", err, "room_id", roomID)
		Error(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	JSON(w, http.StatusOK, msgs)
}

// SendMessage accepts a user message. The reply streams over the room's
// push channel; the response only carries the correlation ids.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	room, ok := h.ownedRoom(w, r, roomID)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acc, err := h.ingress.HandleUserMessage(r.Context(), room.RoomID, room.OwnerID, req.Text)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, pipeline.ErrRoomNotFound), errors.Is(err, pipeline.ErrUserNotFound):
		Error(w, http.StatusNotFound, err.Error())
		return
	default:
		h.logger.Error("Failed to handle message", "error", err, "room_id", roomID)
		Error(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	JSON(w, http.StatusOK, sendMessageResponse{TraceID: acc.TraceID, MessageID: acc.MessageID})
}

// ownedRoom loads roomID and checks the caller owns it, writing the error
// response when it does not.
func (h *ChatHandler) ownedRoom(w http.ResponseWriter, r *http.Request, roomID string) (*domain.Room, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	room, err := h.store.GetRoom(r.Context(), roomID)
	if err != nil {
		h.logger.Error("Failed to load room", "error", err, "room_id", roomID)
		Error(w, http.StatusInternalServerError, "failed to load room")
		return nil, false
	}
	if room == nil {
		Error(w, http.StatusNotFound, "chat room not found")
		return nil, false
	}
	if !room.OwnedBy(userID) {
		Error(w, http.StatusForbidden, "forbidden")
		return nil, false
	}
	return room, true
}
