// Package storage defines the durable surface of the messenger: users, chats,
// participants, messages, invites, and the per-user visibility overlays. The
// store is the single source of truth; engines hold no duplicate state.
package storage

import (
	"context"
	"time"

	"PulseMessenger/server/internal/models"
)

type Storage interface {
	// Users.
	CreateUser(ctx context.Context, user *models.User) (int, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByResetToken(ctx context.Context, token string) (*models.User, error)
	UserExists(ctx context.Context, username, email string) (bool, error)
	UpdateUser(ctx context.Context, user *models.User) error
	SearchUsers(ctx context.Context, query string, excludeID int) ([]models.User, error)

	// Chats and participants. AddParticipant is idempotent on the
	// (chat, user) pair; adding an existing member is a no-op.
	CreateChat(ctx context.Context, chat *models.Chat) (int, error)
	GetChatByID(ctx context.Context, id int) (*models.Chat, error)
	FindDirectChat(ctx context.Context, userA, userB int) (int, error)
	ChatsForUser(ctx context.Context, userID int) ([]models.Chat, error)
	// TouchLastMessage advances last_message_at to at; a touch carrying an
	// older timestamp is a no-op, so late commits never regress it.
	TouchLastMessage(ctx context.Context, chatID int, at time.Time) error
	AddParticipant(ctx context.Context, chatID, userID int, isAdmin bool) error
	IsParticipant(ctx context.Context, chatID, userID int) (bool, error)
	Participants(ctx context.Context, chatID int) ([]models.User, error)

	// Messages. AdvanceMessageStatus moves every message in the chat not
	// authored by readerID and strictly behind target up to target, and
	// returns the ids it touched. Writes that would regress are no-ops.
	SaveMessage(ctx context.Context, msg *models.Message) (int, error)
	GetMessageByID(ctx context.Context, id int) (*models.Message, error)
	MessagesForChat(ctx context.Context, chatID int) ([]models.Message, error)
	AdvanceMessageStatus(ctx context.Context, chatID, readerID int, target models.MessageStatus) ([]int, error)
	UpdateMessageContent(ctx context.Context, id int, content string) error
	DeleteMessage(ctx context.Context, id int) error
	UnreadCount(ctx context.Context, chatID, userID int) (int, error)

	// Visibility overlays. Set/Clear are idempotent; ClearAllVisibility
	// removes both overlays for every user of the chat.
	SetVisibility(ctx context.Context, chatID, userID int, kind models.VisibilityKind) error
	ClearVisibility(ctx context.Context, chatID, userID int, kind models.VisibilityKind) error
	ClearAllVisibility(ctx context.Context, chatID int) error
	GetVisibility(ctx context.Context, chatID, userID int) (archived, deleted bool, err error)

	// Invites. MarkInviteStatus flips pending → target and fails with
	// models.KindInvalidTransition when the invite is already terminal,
	// which is the single-writer guarantee concurrent responders rely on.
	CreateInvite(ctx context.Context, invite *models.Invite) (int, error)
	GetInviteByID(ctx context.Context, id int) (*models.Invite, error)
	PendingInviteExists(ctx context.Context, senderID, receiverID int, chatID *int) (bool, error)
	PendingInvitesFor(ctx context.Context, receiverID int) ([]models.Invite, error)
	MarkInviteStatus(ctx context.Context, id int, target models.InviteStatus) error
}
