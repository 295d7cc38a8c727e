package domain

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single persisted chat message. Messages are never updated.
type Message struct {
	MessageID       string    `json:"message_id"`
	RoomID          string    `json:"room_id"`
	AuthorID        string    `json:"author_id"`
	Role            Role      `json:"role"`
	Content         string    `json:"content"`
	FilteredContent string    `json:"filtered_content,omitempty"`
	TraceID         string    `json:"trace_id"`
	TurnIndex       int       `json:"turn_index"`
	CreatedAt       time.Time `json:"created_at"`
}
