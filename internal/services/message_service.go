package services

import (
	"context"
	"log"

	"github.com/jonboulle/clockwork"

	"PulseMessenger/server/internal/crypto"
	"PulseMessenger/server/internal/models"
	"PulseMessenger/server/internal/storage"
)

// MessageService owns message creation, mutation, the delivery-status
// lifecycle, and the per-user chat visibility toggles.
type MessageService interface {
	SendMessage(ctx context.Context, chatID, senderID int, content string, msgType models.MessageType) (*models.Message, error)
	FetchMessages(ctx context.Context, chatID, requesterID int) ([]models.Message, error)
	MarkRead(ctx context.Context, chatID, readerID int) error
	EditMessage(ctx context.Context, messageID, editorID int, content string) (*models.Message, error)
	DeleteMessage(ctx context.Context, messageID, editorID int) error
	ListChats(ctx context.Context, userID int) ([]models.ChatOverview, error)
	ArchiveChat(ctx context.Context, chatID, userID int) error
	UnarchiveChat(ctx context.Context, chatID, userID int) error
	DeleteChatForUser(ctx context.Context, chatID, userID int) error
}

type messageService struct {
	store    storage.Storage
	notifier Notifier
	cipher   *crypto.Cipher
	clock    clockwork.Clock
}

func NewMessageService(store storage.Storage, notifier Notifier, cipher *crypto.Cipher, clock clockwork.Clock) MessageService {
	return &messageService{store: store, notifier: notifier, cipher: cipher, clock: clock}
}

func (ms *messageService) SendMessage(ctx context.Context, chatID, senderID int, content string, msgType models.MessageType) (*models.Message, error) {
	if msgType == "" {
		msgType = models.MessageText
	}
	if !msgType.Valid() {
		return nil, models.E(models.KindValidationFailed, "unknown message type")
	}
	if content == "" {
		return nil, models.E(models.KindValidationFailed, "message content is required")
	}

	if err := ms.requireParticipant(ctx, chatID, senderID); err != nil {
		return nil, err
	}
	sender, err := ms.store.GetUserByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	sealed, err := ms.cipher.Seal(content)
	if err != nil {
		return nil, wrapInternal(err)
	}

	now := ms.clock.Now()
	msg := &models.Message{
		ChatID:    chatID,
		SenderID:  senderID,
		Type:      msgType,
		Content:   sealed,
		Status:    models.StatusSent,
		CreatedAt: now,
	}
	id, err := ms.store.SaveMessage(ctx, msg)
	if err != nil {
		return nil, wrapInternal(err)
	}
	msg.ID = id

	if err := ms.store.TouchLastMessage(ctx, chatID, now); err != nil {
		return nil, wrapInternal(err)
	}
	// A new message makes the chat reappear for everyone who archived or
	// deleted it.
	if err := ms.store.ClearAllVisibility(ctx, chatID); err != nil {
		return nil, wrapInternal(err)
	}
	log.Printf("Message %d sent to chat %d by user %d", id, chatID, senderID)

	out := *msg
	out.Content = content
	out.Username = sender.Username
	ms.notifier.EmitToChat(chatID, "new_message", map[string]interface{}{"message": out})
	return &out, nil
}

func (ms *messageService) FetchMessages(ctx context.Context, chatID, requesterID int) ([]models.Message, error) {
	if err := ms.requireParticipant(ctx, chatID, requesterID); err != nil {
		return nil, err
	}

	// Reading the chat implies delivery for everything still "sent" that
	// someone else authored. Advance first so the returned view reflects it.
	delivered, err := ms.store.AdvanceMessageStatus(ctx, chatID, requesterID, models.StatusDelivered)
	if err != nil {
		return nil, wrapInternal(err)
	}

	messages, err := ms.store.MessagesForChat(ctx, chatID)
	if err != nil {
		return nil, wrapInternal(err)
	}
	for i := range messages {
		messages[i].Content = ms.cipher.Open(messages[i].Content)
	}

	if len(delivered) > 0 {
		ms.notifier.EmitToChat(chatID, "messages_delivered", map[string]interface{}{
			"chat_id":     chatID,
			"message_ids": delivered,
		})
	}
	return messages, nil
}

func (ms *messageService) MarkRead(ctx context.Context, chatID, readerID int) error {
	if err := ms.requireParticipant(ctx, chatID, readerID); err != nil {
		return err
	}

	ids, err := ms.store.AdvanceMessageStatus(ctx, chatID, readerID, models.StatusRead)
	if err != nil {
		return wrapInternal(err)
	}
	if len(ids) == 0 {
		return nil
	}
	log.Printf("User %d read %d messages in chat %d", readerID, len(ids), chatID)

	// One batched event for the whole chat, not one per message.
	ms.notifier.EmitToChat(chatID, "messages_read", map[string]interface{}{
		"chat_id":   chatID,
		"reader_id": readerID,
	})
	return nil
}

func (ms *messageService) EditMessage(ctx context.Context, messageID, editorID int, content string) (*models.Message, error) {
	if content == "" {
		return nil, models.E(models.KindValidationFailed, "message content is required")
	}

	msg, err := ms.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != editorID {
		return nil, models.E(models.KindForbidden, "only the sender can edit a message")
	}
	sender, err := ms.store.GetUserByID(ctx, editorID)
	if err != nil {
		return nil, err
	}

	sealed, err := ms.cipher.Seal(content)
	if err != nil {
		return nil, wrapInternal(err)
	}
	if err := ms.store.UpdateMessageContent(ctx, messageID, sealed); err != nil {
		return nil, err
	}
	log.Printf("Message %d edited by user %d", messageID, editorID)

	out := *msg
	out.Content = content
	out.Username = sender.Username
	ms.notifier.EmitToChat(msg.ChatID, "update_message", map[string]interface{}{"message": out})
	return &out, nil
}

func (ms *messageService) DeleteMessage(ctx context.Context, messageID, editorID int) error {
	msg, err := ms.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != editorID {
		return models.E(models.KindForbidden, "only the sender can delete a message")
	}

	if err := ms.store.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	log.Printf("Message %d deleted by user %d", messageID, editorID)

	ms.notifier.EmitToChat(msg.ChatID, "delete_message", map[string]interface{}{"id": messageID})
	return nil
}

func (ms *messageService) ListChats(ctx context.Context, userID int) ([]models.ChatOverview, error) {
	chats, err := ms.store.ChatsForUser(ctx, userID)
	if err != nil {
		return nil, wrapInternal(err)
	}

	overviews := make([]models.ChatOverview, 0, len(chats))
	for _, chat := range chats {
		chat.Name = ms.cipher.Open(chat.Name)

		participants, err := ms.store.Participants(ctx, chat.ID)
		if err != nil {
			return nil, wrapInternal(err)
		}
		chat.Participants = participants

		// Direct chats display as the other side's username.
		if !chat.IsGroup {
			for _, p := range participants {
				if p.ID != userID {
					chat.Name = p.Username
					break
				}
			}
		}

		unread, err := ms.store.UnreadCount(ctx, chat.ID, userID)
		if err != nil {
			return nil, wrapInternal(err)
		}
		archived, deleted, err := ms.store.GetVisibility(ctx, chat.ID, userID)
		if err != nil {
			return nil, wrapInternal(err)
		}

		overviews = append(overviews, models.ChatOverview{
			Chat:        chat,
			UnreadCount: unread,
			Archived:    archived,
			Deleted:     deleted,
		})
	}
	return overviews, nil
}

func (ms *messageService) ArchiveChat(ctx context.Context, chatID, userID int) error {
	if err := ms.requireParticipant(ctx, chatID, userID); err != nil {
		return err
	}
	return wrapInternal(ms.store.SetVisibility(ctx, chatID, userID, models.VisibilityArchived))
}

func (ms *messageService) UnarchiveChat(ctx context.Context, chatID, userID int) error {
	if err := ms.requireParticipant(ctx, chatID, userID); err != nil {
		return err
	}
	return wrapInternal(ms.store.ClearVisibility(ctx, chatID, userID, models.VisibilityArchived))
}

func (ms *messageService) DeleteChatForUser(ctx context.Context, chatID, userID int) error {
	if err := ms.requireParticipant(ctx, chatID, userID); err != nil {
		return err
	}
	return wrapInternal(ms.store.SetVisibility(ctx, chatID, userID, models.VisibilityDeleted))
}

func (ms *messageService) requireParticipant(ctx context.Context, chatID, userID int) error {
	if _, err := ms.store.GetChatByID(ctx, chatID); err != nil {
		return err
	}
	isMember, err := ms.store.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return wrapInternal(err)
	}
	if !isMember {
		return models.ErrNotParticipant
	}
	return nil
}
