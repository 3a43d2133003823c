package models

import (
	"time"
)

type Chat struct {
	ID            int       `json:"id" db:"id"`
	IsGroup       bool      `json:"is_group" db:"is_group"`
	Name          string    `json:"name,omitempty" db:"name"`
	LastMessageAt time.Time `json:"last_message_at" db:"last_message_at"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	Participants  []User    `json:"participants,omitempty"`
}

type Participant struct {
	ID       int       `json:"id" db:"id"`
	ChatID   int       `json:"chat_id" db:"chat_id"`
	UserID   int       `json:"user_id" db:"user_id"`
	IsAdmin  bool      `json:"is_admin" db:"is_admin"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

// VisibilityKind distinguishes the two per-user overlays on a chat. Neither
// affects the chat itself; both are cleared for everyone when a new message
// arrives.
type VisibilityKind string

const (
	VisibilityArchived VisibilityKind = "archived"
	VisibilityDeleted  VisibilityKind = "deleted"
)

// ChatOverview is the per-user view returned by the chat list.
type ChatOverview struct {
	Chat
	UnreadCount int  `json:"unread_count"`
	Archived    bool `json:"archived"`
	Deleted     bool `json:"deleted"`
}
