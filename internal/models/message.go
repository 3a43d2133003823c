package models

import (
	"time"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageAudio MessageType = "audio"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageAudio:
		return true
	}
	return false
}

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Rank orders statuses for the advance-only rule: a write may only move a
// message to a higher rank, never back.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	}
	return -1
}

type Message struct {
	ID       int         `json:"id" db:"id"`
	ChatID   int         `json:"chat_id" db:"chat_id"`
	SenderID int         `json:"sender_id" db:"sender_id"`
	Username string      `json:"username,omitempty"`
	Type     MessageType `json:"type" db:"type"`
	// Content is ciphertext in the store and plaintext on the wire; services
	// open it before returning or broadcasting a message.
	Content   string        `json:"content" db:"content"`
	Status    MessageStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}
