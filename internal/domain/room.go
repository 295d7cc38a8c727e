package domain

import "time"

// DefaultRoomTitle is used for new rooms and when no title can be derived.
const DefaultRoomTitle = "New Chat"

// Room is a conversation owned by a single user.
type Room struct {
	RoomID    string    `json:"room_id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnedBy reports whether userID owns the room.
func (r *Room) OwnedBy(userID string) bool {
	return r != nil && userID != "" && r.OwnerID == userID
}
