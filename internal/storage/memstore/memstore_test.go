package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseMessenger/server/internal/models"
)

func seedChat(t *testing.T, s *Store, userA, userB int) int {
	t.Helper()
	ctx := context.Background()

	chatID, err := s.CreateChat(ctx, &models.Chat{LastMessageAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.AddParticipant(ctx, chatID, userA, false))
	require.NoError(t, s.AddParticipant(ctx, chatID, userB, false))
	return chatID
}

func TestAdvanceMessageStatusIsAdvanceOnly(t *testing.T) {
	s := New()
	ctx := context.Background()
	chatID := seedChat(t, s, 1, 2)

	var ids []int
	for i := 0; i < 3; i++ {
		id, err := s.SaveMessage(ctx, &models.Message{
			ChatID:    chatID,
			SenderID:  1,
			Type:      models.MessageText,
			Content:   "x",
			Status:    models.StatusSent,
			CreatedAt: time.Now(),
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	advanced, err := s.AdvanceMessageStatus(ctx, chatID, 2, models.StatusRead)
	require.NoError(t, err)
	assert.Equal(t, ids, advanced)

	// a later delivery pass must not pull read back
	advanced, err = s.AdvanceMessageStatus(ctx, chatID, 2, models.StatusDelivered)
	require.NoError(t, err)
	assert.Empty(t, advanced)

	for _, id := range ids {
		msg, err := s.GetMessageByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRead, msg.Status)
	}
}

func TestAdvanceSkipsOwnMessages(t *testing.T) {
	s := New()
	ctx := context.Background()
	chatID := seedChat(t, s, 1, 2)

	mine, err := s.SaveMessage(ctx, &models.Message{
		ChatID: chatID, SenderID: 2, Type: models.MessageText,
		Content: "x", Status: models.StatusSent, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	advanced, err := s.AdvanceMessageStatus(ctx, chatID, 2, models.StatusRead)
	require.NoError(t, err)
	assert.Empty(t, advanced)

	msg, err := s.GetMessageByID(ctx, mine)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, msg.Status)
}

func TestTouchLastMessageNeverRegresses(t *testing.T) {
	s := New()
	ctx := context.Background()

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	chatID, err := s.CreateChat(ctx, &models.Chat{LastMessageAt: start})
	require.NoError(t, err)

	later := start.Add(time.Minute)
	require.NoError(t, s.TouchLastMessage(ctx, chatID, later))

	// a touch from an earlier send that commits late is a no-op
	require.NoError(t, s.TouchLastMessage(ctx, chatID, start))

	chat, err := s.GetChatByID(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, later, chat.LastMessageAt)
}

func TestMarkInviteStatusRequiresPending(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.CreateInvite(ctx, &models.Invite{SenderID: 1, ReceiverID: 2})
	require.NoError(t, err)

	require.NoError(t, s.MarkInviteStatus(ctx, id, models.InviteAccepted))

	err = s.MarkInviteStatus(ctx, id, models.InviteDeclined)
	assert.Equal(t, models.KindInvalidTransition, models.KindOf(err))

	invite, err := s.GetInviteByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.InviteAccepted, invite.Status)
}

func TestPendingInviteExistsMatchesChatRef(t *testing.T) {
	s := New()
	ctx := context.Background()
	chatID := 5

	_, err := s.CreateInvite(ctx, &models.Invite{SenderID: 1, ReceiverID: 2, ChatID: &chatID})
	require.NoError(t, err)

	exists, err := s.PendingInviteExists(ctx, 1, 2, &chatID)
	require.NoError(t, err)
	assert.True(t, exists)

	// a direct invite between the same pair is a different relationship
	exists, err = s.PendingInviteExists(ctx, 1, 2, nil)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAddParticipantIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	chatID, err := s.CreateChat(ctx, &models.Chat{LastMessageAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, s.AddParticipant(ctx, chatID, 1, true))
	require.NoError(t, s.AddParticipant(ctx, chatID, 1, false))

	rows := s.ParticipantRows(chatID)
	require.Len(t, rows, 1)
	// the first write wins, including the admin flag
	assert.True(t, rows[0].IsAdmin)
}

func TestVisibilityLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.SetVisibility(ctx, 1, 10, models.VisibilityArchived))
	require.NoError(t, s.SetVisibility(ctx, 1, 11, models.VisibilityDeleted))

	archived, deleted, err := s.GetVisibility(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, archived)
	assert.False(t, deleted)

	require.NoError(t, s.ClearAllVisibility(ctx, 1))

	archived, deleted, err = s.GetVisibility(ctx, 1, 10)
	require.NoError(t, err)
	assert.False(t, archived)
	_, deleted, err = s.GetVisibility(ctx, 1, 11)
	require.NoError(t, err)
	assert.False(t, deleted)
}
