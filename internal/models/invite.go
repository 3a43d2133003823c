package models

import (
	"time"
)

type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
)

// Terminal reports whether no further transition is allowed out of s.
func (s InviteStatus) Terminal() bool {
	return s == InviteAccepted || s == InviteDeclined
}

type Invite struct {
	ID         int          `json:"id" db:"id"`
	SenderID   int          `json:"sender_id" db:"sender_id"`
	ReceiverID int          `json:"receiver_id" db:"receiver_id"`
	// ChatID is set when the invite adds the receiver to an existing group.
	ChatID *int `json:"chat_id,omitempty" db:"chat_id"`
	// GroupName is set when acceptance creates a new group chat. When both
	// ChatID and GroupName are empty the invite creates a direct chat.
	GroupName      *string      `json:"group_name,omitempty" db:"group_name"`
	Status         InviteStatus `json:"status" db:"status"`
	SenderUsername string       `json:"sender_username,omitempty"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}

// IsGroup reports whether accepting this invite ends in a group chat.
func (i *Invite) IsGroup() bool {
	return i.ChatID != nil || i.GroupName != nil
}
