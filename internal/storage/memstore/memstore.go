// Package memstore implements storage.Storage in process memory. It backs the
// engine tests and the dev mode of the server; the production store lives in
// pgstore. All methods are safe for concurrent use: every access takes the
// store mutex, and status/invite updates are applied under it, which gives the
// same per-row atomicity the SQL store gets from guarded UPDATEs.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"PulseMessenger/server/internal/models"
)

type visKey struct {
	chatID int
	userID int
	kind   models.VisibilityKind
}

type partKey struct {
	chatID int
	userID int
}

type Store struct {
	mu sync.Mutex

	users        map[int]*models.User
	chats        map[int]*models.Chat
	messages     map[int]*models.Message
	invites      map[int]*models.Invite
	participants map[partKey]*models.Participant
	visibility   map[visKey]struct{}

	nextUserID    int
	nextChatID    int
	nextMessageID int
	nextInviteID  int
	nextPartID    int
	partSeq       int
}

func New() *Store {
	return &Store{
		users:        make(map[int]*models.User),
		chats:        make(map[int]*models.Chat),
		messages:     make(map[int]*models.Message),
		invites:      make(map[int]*models.Invite),
		participants: make(map[partKey]*models.Participant),
		visibility:   make(map[visKey]struct{}),
	}
}

func (s *Store) CreateUser(_ context.Context, user *models.User) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextUserID++
	u := *user
	u.ID = s.nextUserID
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.users[u.ID] = &u
	return u.ID, nil
}

func (s *Store) GetUserByID(_ context.Context, id int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email {
			u := *user
			return &u, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (s *Store) GetUserByResetToken(_ context.Context, token string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.ResetToken != nil && *user.ResetToken == token {
			u := *user
			return &u, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (s *Store) UserExists(_ context.Context, username, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Username == username || user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return models.ErrUserNotFound
	}
	u := *user
	s.users[user.ID] = &u
	return nil
}

func (s *Store) SearchUsers(_ context.Context, query string, excludeID int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(query)
	var users []models.User
	for _, user := range s.users {
		if user.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(user.Username), q) ||
			strings.Contains(strings.ToLower(user.Email), q) {
			users = append(users, *user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) CreateChat(_ context.Context, chat *models.Chat) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextChatID++
	c := *chat
	c.ID = s.nextChatID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.chats[c.ID] = &c
	return c.ID, nil
}

func (s *Store) GetChatByID(_ context.Context, id int) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[id]
	if !ok {
		return nil, models.ErrChatNotFound
	}
	c := *chat
	return &c, nil
}

func (s *Store) FindDirectChat(_ context.Context, userA, userB int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, chat := range s.chats {
		if chat.IsGroup {
			continue
		}
		_, hasA := s.participants[partKey{chatID: id, userID: userA}]
		_, hasB := s.participants[partKey{chatID: id, userID: userB}]
		if hasA && hasB {
			return id, nil
		}
	}
	return 0, nil
}

func (s *Store) ChatsForUser(_ context.Context, userID int) ([]models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chats []models.Chat
	for id, chat := range s.chats {
		if _, ok := s.participants[partKey{chatID: id, userID: userID}]; ok {
			chats = append(chats, *chat)
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].LastMessageAt.After(chats[j].LastMessageAt)
	})
	return chats, nil
}

func (s *Store) TouchLastMessage(_ context.Context, chatID int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return models.ErrChatNotFound
	}
	// advance-only: a stale touch is a no-op
	if chat.LastMessageAt.Before(at) {
		chat.LastMessageAt = at
	}
	return nil
}

func (s *Store) AddParticipant(_ context.Context, chatID, userID int, isAdmin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := partKey{chatID: chatID, userID: userID}
	if _, ok := s.participants[key]; ok {
		return nil
	}
	s.nextPartID++
	s.partSeq++
	s.participants[key] = &models.Participant{
		ID:       s.nextPartID,
		ChatID:   chatID,
		UserID:   userID,
		IsAdmin:  isAdmin,
		JoinedAt: time.Now().Add(time.Duration(s.partSeq)), // stable join order
	}
	return nil
}

func (s *Store) IsParticipant(_ context.Context, chatID, userID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.participants[partKey{chatID: chatID, userID: userID}]
	return ok, nil
}

func (s *Store) Participants(_ context.Context, chatID int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var members []*models.Participant
	for _, p := range s.participants {
		if p.ChatID == chatID {
			members = append(members, p)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	var users []models.User
	for _, p := range members {
		if user, ok := s.users[p.UserID]; ok {
			users = append(users, *user)
		}
	}
	return users, nil
}

// ParticipantRows exposes raw participant records, admin flag included. The
// production store keeps this off the Storage interface; tests need it to
// assert admin assignment.
func (s *Store) ParticipantRows(chatID int) []models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []models.Participant
	for _, p := range s.participants {
		if p.ChatID == chatID {
			rows = append(rows, *p)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

func (s *Store) SaveMessage(_ context.Context, msg *models.Message) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[msg.ChatID]; !ok {
		return 0, models.ErrChatNotFound
	}
	s.nextMessageID++
	m := *msg
	m.ID = s.nextMessageID
	s.messages[m.ID] = &m
	return m.ID, nil
}

func (s *Store) GetMessageByID(_ context.Context, id int) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, models.ErrMessageNotFound
	}
	m := *msg
	return &m, nil
}

func (s *Store) MessagesForChat(_ context.Context, chatID int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var messages []models.Message
	for _, msg := range s.messages {
		if msg.ChatID == chatID {
			m := *msg
			if user, ok := s.users[m.SenderID]; ok {
				m.Username = user.Username
			}
			messages = append(messages, m)
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (s *Store) AdvanceMessageStatus(_ context.Context, chatID, readerID int, target models.MessageStatus) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int
	for _, msg := range s.messages {
		if msg.ChatID != chatID || msg.SenderID == readerID {
			continue
		}
		if msg.Status.Rank() < target.Rank() {
			msg.Status = target
			ids = append(ids, msg.ID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *Store) UpdateMessageContent(_ context.Context, id int, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return models.ErrMessageNotFound
	}
	msg.Content = content
	return nil
}

func (s *Store) DeleteMessage(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return models.ErrMessageNotFound
	}
	delete(s.messages, id)
	return nil
}

func (s *Store) UnreadCount(_ context.Context, chatID, userID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, msg := range s.messages {
		if msg.ChatID == chatID && msg.SenderID != userID && msg.Status != models.StatusRead {
			count++
		}
	}
	return count, nil
}

func (s *Store) SetVisibility(_ context.Context, chatID, userID int, kind models.VisibilityKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visibility[visKey{chatID: chatID, userID: userID, kind: kind}] = struct{}{}
	return nil
}

func (s *Store) ClearVisibility(_ context.Context, chatID, userID int, kind models.VisibilityKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.visibility, visKey{chatID: chatID, userID: userID, kind: kind})
	return nil
}

func (s *Store) ClearAllVisibility(_ context.Context, chatID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.visibility {
		if key.chatID == chatID {
			delete(s.visibility, key)
		}
	}
	return nil
}

func (s *Store) GetVisibility(_ context.Context, chatID, userID int) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, archived := s.visibility[visKey{chatID: chatID, userID: userID, kind: models.VisibilityArchived}]
	_, deleted := s.visibility[visKey{chatID: chatID, userID: userID, kind: models.VisibilityDeleted}]
	return archived, deleted, nil
}

func (s *Store) CreateInvite(_ context.Context, invite *models.Invite) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextInviteID++
	inv := *invite
	inv.ID = s.nextInviteID
	inv.Status = models.InvitePending
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	s.invites[inv.ID] = &inv
	return inv.ID, nil
}

func (s *Store) GetInviteByID(_ context.Context, id int) (*models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.invites[id]
	if !ok {
		return nil, models.ErrInviteNotFound
	}
	inv := *invite
	return &inv, nil
}

func (s *Store) PendingInviteExists(_ context.Context, senderID, receiverID int, chatID *int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, invite := range s.invites {
		if invite.Status != models.InvitePending {
			continue
		}
		if invite.SenderID != senderID || invite.ReceiverID != receiverID {
			continue
		}
		if sameChatRef(invite.ChatID, chatID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) PendingInvitesFor(_ context.Context, receiverID int) ([]models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var invites []models.Invite
	for _, invite := range s.invites {
		if invite.ReceiverID == receiverID && invite.Status == models.InvitePending {
			inv := *invite
			if sender, ok := s.users[inv.SenderID]; ok {
				inv.SenderUsername = sender.Username
			}
			invites = append(invites, inv)
		}
	}
	sort.Slice(invites, func(i, j int) bool { return invites[i].ID > invites[j].ID })
	return invites, nil
}

func (s *Store) MarkInviteStatus(_ context.Context, id int, target models.InviteStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.invites[id]
	if !ok {
		return models.ErrInviteNotFound
	}
	if invite.Status != models.InvitePending {
		return models.E(models.KindInvalidTransition,
			"invite already "+string(invite.Status))
	}
	invite.Status = target
	return nil
}

func sameChatRef(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
