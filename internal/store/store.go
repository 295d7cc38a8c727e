// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/aice-relay/internal/domain"
)

// ErrDuplicateAssistant is returned when a turn already has an assistant message.
var ErrDuplicateAssistant = errors.New("assistant message already exists for turn")

// Repository defines the interface for persisting users, rooms and messages.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns nil, nil if absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// CreateRoom inserts a new room.
	CreateRoom(ctx context.Context, room *domain.Room) error

	// GetRoom retrieves a room by ID. Returns nil, nil if absent.
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)

	// ListRooms returns the rooms owned by ownerID, newest first.
	ListRooms(ctx context.Context, ownerID string) ([]*domain.Room, error)

	// UpdateRoomTitle sets the title of a room.
	UpdateRoomTitle(ctx context.Context, roomID, title string) error

	// InsertMessage persists a message. A second assistant message for the
	// same room and turn fails with ErrDuplicateAssistant.
	InsertMessage(ctx context.Context, msg *domain.Message) error

	// GetMessage retrieves a message by ID. Returns nil, nil if absent.
	GetMessage(ctx context.Context, messageID string) (*domain.Message, error)

	// ListMessages returns a room's messages in creation order.
	ListMessages(ctx context.Context, roomID string) ([]*domain.Message, error)

	// MaxTurnIndex returns the highest persisted turn index in a room, or 0.
	MaxTurnIndex(ctx context.Context, roomID string) (int, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
