package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/aice-relay/internal/domain"
	"github.com/ashureev/aice-relay/internal/events"
	"github.com/ashureev/aice-relay/internal/metrics"
	"github.com/ashureev/aice-relay/internal/telemetry"
	"github.com/google/uuid"
)

// RawPublisher emits raw request events.
type RawPublisher interface {
	PublishRaw(ctx context.Context, req *events.RawRequest) error
}

// Accepted describes a message taken in at ingress.
type Accepted struct {
	TraceID   string `json:"traceId"`
	MessageID string `json:"messageId"`
	TurnIndex int    `json:"turnIndex"`
}

// Ingress handles inbound user messages.
type Ingress struct {
	store     Store
	turns     Turns
	publisher RawPublisher
	titles    TitleScheduler
	hub       Pusher
	producer  string
	now       func() time.Time
	logger    *slog.Logger
}

// NewIngress wires the ingress path. titles may be nil.
func NewIngress(store Store, turns Turns, publisher RawPublisher, titles TitleScheduler, hub Pusher, producer string, logger *slog.Logger) *Ingress {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingress{
		store:     store,
		turns:     turns,
		publisher: publisher,
		titles:    titles,
		hub:       hub,
		producer:  producer,
		now:       time.Now,
		logger:    logger,
	}
}

// HandleUserMessage allocates a turn, persists the message, starts title
// generation on the first turn, publishes the raw request, and pushes the
// skeleton event. Once the message is persisted the call succeeds even if
// publishing fails.
func (i *Ingress) HandleUserMessage(ctx context.Context, roomID, userID, text string) (*Accepted, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	room, err := i.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	if room == nil {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	user, err := i.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	traceID := telemetry.TraceIDOrNew(ctx)
	i.logger.Info("Handling user message", "room_id", roomID, "user_id", userID, "trace_id", traceID)

	turnIdx, err := i.turns.NextTurn(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("allocate turn: %w", err)
	}

	now := i.now()
	msg := &domain.Message{
		MessageID: uuid.NewString(),
		RoomID:    roomID,
		AuthorID:  userID,
		Role:      domain.RoleUser,
		Content:   text,
		TraceID:   traceID,
		TurnIndex: turnIdx,
		CreatedAt: now,
	}
	if err := i.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}
	metrics.MessagesIngested.Inc()

	if turnIdx == 1 && i.titles != nil {
		i.logger.Info("Triggering title update", "room_id", roomID)
		i.titles.TryUpdateTitleAsync(ctx, roomID, text)
	}

	raw := &events.RawRequest{
		Headers:       events.NewHeaders(traceID, i.producer, now),
		TraceID:       traceID,
		RoomID:        roomID,
		MessageID:     msg.MessageID,
		UserID:        userID,
		Timestamp:     now.UnixMilli(),
		Text:          text,
		SchemaVersion: events.SchemaVersion,
	}
	// The message is already committed; a failed publish is logged, not returned.
	if err := i.publisher.PublishRaw(context.WithoutCancel(ctx), raw); err != nil {
		i.logger.Error("Failed to publish raw request",
			"room_id", roomID, "message_id", msg.MessageID, "trace_id", traceID, "error", err)
	}

	i.hub.Push(roomID, events.PushSkeleton, events.Skeleton{
		Role:      string(domain.RoleAssistant),
		Content:   "",
		TurnIndex: turnIdx,
	})

	return &Accepted{TraceID: traceID, MessageID: msg.MessageID, TurnIndex: turnIdx}, nil
}
