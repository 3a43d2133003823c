package services

import (
	"context"
	"log"
	"sync"

	"github.com/jonboulle/clockwork"

	"PulseMessenger/server/internal/crypto"
	"PulseMessenger/server/internal/models"
	"PulseMessenger/server/internal/storage"
)

// MembershipService owns the invite lifecycle and chat creation. It is the
// only writer of participant rows.
type MembershipService interface {
	CreateDirectInvite(ctx context.Context, senderID, receiverID int) (*models.Invite, error)
	CreateGroupInvite(ctx context.Context, senderID, receiverID int, groupName string, chatID *int) (*models.Invite, error)
	RespondToInvite(ctx context.Context, inviteID, receiverID int, accept bool) (*models.Chat, error)
	CreateDirectChat(ctx context.Context, creatorID, otherID int) (*models.Chat, error)
	CreateGroupDirect(ctx context.Context, creatorID int, groupName string, memberIDs []int) (*models.Chat, error)
	ListPendingInvites(ctx context.Context, receiverID int) ([]models.Invite, error)
}

type membershipService struct {
	store    storage.Storage
	notifier Notifier
	cipher   *crypto.Cipher
	clock    clockwork.Clock

	// Per-invite locks serialize concurrent responses to the same invite
	// within the process; the store's conditional status update covers the
	// cross-process case.
	mu          sync.Mutex
	inviteLocks map[int]*sync.Mutex
}

func NewMembershipService(store storage.Storage, notifier Notifier, cipher *crypto.Cipher, clock clockwork.Clock) MembershipService {
	return &membershipService{
		store:       store,
		notifier:    notifier,
		cipher:      cipher,
		clock:       clock,
		inviteLocks: make(map[int]*sync.Mutex),
	}
}

func (ms *membershipService) lockInvite(id int) *sync.Mutex {
	ms.mu.Lock()
	lock, ok := ms.inviteLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		ms.inviteLocks[id] = lock
	}
	ms.mu.Unlock()

	lock.Lock()
	return lock
}

// unlockInvite releases the per-invite lock, discarding the map entry once
// the invite is terminal so the map does not grow with every responded
// invite. A straggler that raced the deletion still fails on the store's
// conditional status update.
func (ms *membershipService) unlockInvite(id int, lock *sync.Mutex, terminal *bool) {
	if *terminal {
		ms.mu.Lock()
		delete(ms.inviteLocks, id)
		ms.mu.Unlock()
	}
	lock.Unlock()
}

func (ms *membershipService) CreateDirectInvite(ctx context.Context, senderID, receiverID int) (*models.Invite, error) {
	return ms.createInvite(ctx, &models.Invite{SenderID: senderID, ReceiverID: receiverID})
}

func (ms *membershipService) CreateGroupInvite(ctx context.Context, senderID, receiverID int, groupName string, chatID *int) (*models.Invite, error) {
	if groupName == "" && chatID == nil {
		return nil, models.E(models.KindValidationFailed, "group invite requires a group name or an existing chat")
	}

	invite := &models.Invite{SenderID: senderID, ReceiverID: receiverID, ChatID: chatID}
	if chatID != nil {
		chat, err := ms.store.GetChatByID(ctx, *chatID)
		if err != nil {
			return nil, err
		}
		if !chat.IsGroup {
			return nil, models.E(models.KindValidationFailed, "cannot invite into a direct chat")
		}
		isMember, err := ms.store.IsParticipant(ctx, *chatID, senderID)
		if err != nil {
			return nil, wrapInternal(err)
		}
		if !isMember {
			return nil, models.ErrNotParticipant
		}
	} else {
		invite.GroupName = &groupName
	}
	return ms.createInvite(ctx, invite)
}

func (ms *membershipService) createInvite(ctx context.Context, invite *models.Invite) (*models.Invite, error) {
	if invite.SenderID == invite.ReceiverID {
		return nil, models.E(models.KindValidationFailed, "cannot invite yourself")
	}

	sender, err := ms.store.GetUserByID(ctx, invite.SenderID)
	if err != nil {
		return nil, err
	}
	if _, err := ms.store.GetUserByID(ctx, invite.ReceiverID); err != nil {
		return nil, err
	}

	exists, err := ms.store.PendingInviteExists(ctx, invite.SenderID, invite.ReceiverID, invite.ChatID)
	if err != nil {
		return nil, wrapInternal(err)
	}
	if exists {
		return nil, models.E(models.KindDuplicateInvite, "a pending invite for this user already exists")
	}

	id, err := ms.store.CreateInvite(ctx, invite)
	if err != nil {
		return nil, wrapInternal(err)
	}
	invite.ID = id
	invite.Status = models.InvitePending
	invite.SenderUsername = sender.Username
	log.Printf("Invite %d created: user %d -> user %d", id, invite.SenderID, invite.ReceiverID)

	ms.notifier.EmitToUser(invite.ReceiverID, "new_invite", map[string]interface{}{
		"invite_id":  invite.ID,
		"sender_id":  invite.SenderID,
		"sender":     sender.Username,
		"group_name": invite.GroupName,
		"is_group":   invite.IsGroup(),
	})
	return invite, nil
}

func (ms *membershipService) RespondToInvite(ctx context.Context, inviteID, receiverID int, accept bool) (*models.Chat, error) {
	lock := ms.lockInvite(inviteID)
	terminal := false
	defer ms.unlockInvite(inviteID, lock, &terminal)

	invite, err := ms.store.GetInviteByID(ctx, inviteID)
	if err != nil {
		// nothing to respond to, so nothing to keep a lock for
		terminal = true
		return nil, err
	}
	if invite.ReceiverID != receiverID {
		return nil, models.ErrInviteNotFound
	}
	if invite.Status.Terminal() {
		terminal = true
		return nil, models.E(models.KindInvalidTransition, "invite already "+string(invite.Status))
	}

	if !accept {
		if err := ms.store.MarkInviteStatus(ctx, inviteID, models.InviteDeclined); err != nil {
			return nil, err
		}
		terminal = true
		log.Printf("Invite %d declined by user %d", inviteID, receiverID)
		return nil, nil
	}

	// Membership is recorded before the invite goes terminal: a crash in
	// between leaves a retryable pending invite, never a silently accepted
	// one with no membership behind it.
	var chatID int
	switch {
	case invite.ChatID != nil:
		if _, err := ms.store.GetChatByID(ctx, *invite.ChatID); err != nil {
			if models.KindOf(err) == models.KindNotFound {
				return nil, models.E(models.KindChatGone, "the chat behind this invite no longer exists")
			}
			return nil, err
		}
		if err := ms.store.AddParticipant(ctx, *invite.ChatID, receiverID, false); err != nil {
			return nil, wrapInternal(err)
		}
		chatID = *invite.ChatID

	case invite.GroupName != nil:
		chatID, err = ms.newChat(ctx, true, *invite.GroupName)
		if err != nil {
			return nil, err
		}
		if err := ms.store.AddParticipant(ctx, chatID, invite.SenderID, true); err != nil {
			return nil, wrapInternal(err)
		}
		if err := ms.store.AddParticipant(ctx, chatID, receiverID, false); err != nil {
			return nil, wrapInternal(err)
		}

	default:
		// Direct chats are unique per user pair; an accept retried after
		// a mid-operation crash reuses the chat it already created.
		chatID, err = ms.store.FindDirectChat(ctx, invite.SenderID, receiverID)
		if err != nil {
			return nil, wrapInternal(err)
		}
		if chatID == 0 {
			chatID, err = ms.newChat(ctx, false, "")
			if err != nil {
				return nil, err
			}
		}
		if err := ms.store.AddParticipant(ctx, chatID, invite.SenderID, false); err != nil {
			return nil, wrapInternal(err)
		}
		if err := ms.store.AddParticipant(ctx, chatID, receiverID, false); err != nil {
			return nil, wrapInternal(err)
		}
	}

	if err := ms.store.MarkInviteStatus(ctx, inviteID, models.InviteAccepted); err != nil {
		return nil, err
	}
	terminal = true
	log.Printf("Invite %d accepted by user %d, chat %d", inviteID, receiverID, chatID)

	chat, err := ms.loadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	ms.notifier.EmitToUser(invite.SenderID, "chat_created", map[string]interface{}{"chat": chat})
	ms.notifier.EmitToUser(receiverID, "chat_created", map[string]interface{}{"chat": chat})
	return chat, nil
}

func (ms *membershipService) CreateDirectChat(ctx context.Context, creatorID, otherID int) (*models.Chat, error) {
	if creatorID == otherID {
		return nil, models.E(models.KindValidationFailed, "cannot open a chat with yourself")
	}
	if _, err := ms.store.GetUserByID(ctx, otherID); err != nil {
		return nil, err
	}

	chatID, err := ms.store.FindDirectChat(ctx, creatorID, otherID)
	if err != nil {
		return nil, wrapInternal(err)
	}
	if chatID == 0 {
		chatID, err = ms.newChat(ctx, false, "")
		if err != nil {
			return nil, err
		}
		if err := ms.store.AddParticipant(ctx, chatID, creatorID, false); err != nil {
			return nil, wrapInternal(err)
		}
		if err := ms.store.AddParticipant(ctx, chatID, otherID, false); err != nil {
			return nil, wrapInternal(err)
		}
		log.Printf("Direct chat %d created between users %d and %d", chatID, creatorID, otherID)
	}

	chat, err := ms.loadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	ms.notifier.EmitToUser(creatorID, "chat_created", map[string]interface{}{"chat": chat})
	ms.notifier.EmitToUser(otherID, "chat_created", map[string]interface{}{"chat": chat})
	return chat, nil
}

func (ms *membershipService) CreateGroupDirect(ctx context.Context, creatorID int, groupName string, memberIDs []int) (*models.Chat, error) {
	if groupName == "" {
		return nil, models.E(models.KindValidationFailed, "group name is required")
	}

	chatID, err := ms.newChat(ctx, true, groupName)
	if err != nil {
		return nil, err
	}
	if err := ms.store.AddParticipant(ctx, chatID, creatorID, true); err != nil {
		return nil, wrapInternal(err)
	}
	log.Printf("Group chat %d (%s) created by user %d", chatID, groupName, creatorID)

	// Each member joins through their own invite, accepted or declined
	// independently of the others.
	for _, memberID := range memberIDs {
		if memberID == creatorID {
			continue
		}
		if _, err := ms.CreateGroupInvite(ctx, creatorID, memberID, "", &chatID); err != nil {
			log.Printf("Skipping invite for user %d to chat %d: %v", memberID, chatID, err)
		}
	}

	chat, err := ms.loadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	ms.notifier.EmitToUser(creatorID, "chat_created", map[string]interface{}{"chat": chat})
	return chat, nil
}

func (ms *membershipService) ListPendingInvites(ctx context.Context, receiverID int) ([]models.Invite, error) {
	invites, err := ms.store.PendingInvitesFor(ctx, receiverID)
	if err != nil {
		return nil, wrapInternal(err)
	}
	return invites, nil
}

func (ms *membershipService) newChat(ctx context.Context, isGroup bool, name string) (int, error) {
	sealed, err := ms.cipher.Seal(name)
	if err != nil {
		return 0, wrapInternal(err)
	}
	id, err := ms.store.CreateChat(ctx, &models.Chat{
		IsGroup:       isGroup,
		Name:          sealed,
		LastMessageAt: ms.clock.Now(),
	})
	if err != nil {
		return 0, wrapInternal(err)
	}
	return id, nil
}

// loadChat returns the chat with its member list and plaintext name.
func (ms *membershipService) loadChat(ctx context.Context, chatID int) (*models.Chat, error) {
	chat, err := ms.store.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	chat.Name = ms.cipher.Open(chat.Name)

	participants, err := ms.store.Participants(ctx, chatID)
	if err != nil {
		return nil, wrapInternal(err)
	}
	chat.Participants = participants
	return chat, nil
}

func wrapInternal(err error) error {
	if err == nil {
		return nil
	}
	if models.KindOf(err) != models.KindInternal {
		return err
	}
	return models.Wrap(models.KindInternal, "internal error", err)
}
