// Package pipeline moves a chat message through the relay: ingress persists
// and publishes it, and the result consumers turn worker output back into
// stored replies and viewer pushes.
package pipeline

import (
	"context"
	"errors"

	"github.com/ashureev/aice-relay/internal/domain"
	"github.com/ashureev/aice-relay/internal/events"
)

var (
	// ErrRoomNotFound is returned when the target room does not exist.
	ErrRoomNotFound = errors.New("chat room not found")
	// ErrUserNotFound is returned when the sender does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmptyMessage is returned for blank message text.
	ErrEmptyMessage = errors.New("message text is empty")
)

// GlobalRoom receives error events that name no room.
const GlobalRoom = "GLOBAL"

// Store is the persistence the pipeline needs.
type Store interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	InsertMessage(ctx context.Context, msg *domain.Message) error
	GetMessage(ctx context.Context, messageID string) (*domain.Message, error)
}

// Turns allocates and reads per-room turn numbers.
type Turns interface {
	NextTurn(ctx context.Context, roomID string) (int, error)
	CurrentTurn(ctx context.Context, roomID string) (int, error)
}

// Pusher fans an event out to a room's viewers.
type Pusher interface {
	Push(roomID, name string, data any)
}

// TitleScheduler starts background title generation for a room.
type TitleScheduler interface {
	TryUpdateTitleAsync(ctx context.Context, roomID, firstMessage string) bool
}

// ReplyBuilder produces the canned reply for a dropped message.
type ReplyBuilder interface {
	BuildText(fr *events.FilterResult, tone domain.Tone) string
}
