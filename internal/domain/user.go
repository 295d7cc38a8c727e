// Package domain contains core domain types for the chat relay.
package domain

import (
	"time"
)

// User represents a chat participant and the settings the relay reads.
type User struct {
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	PreferredTone Tone      `json:"preferred_tone,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToneOrDefault returns the user's preferred tone, or fallback when unset.
func (u *User) ToneOrDefault(fallback Tone) Tone {
	if u == nil || u.PreferredTone == "" {
		return fallback
	}
	return u.PreferredTone
}
