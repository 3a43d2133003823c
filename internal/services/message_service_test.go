package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseMessenger/server/internal/models"
)

func TestSendMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	msg, err := f.messages.SendMessage(ctx, chatID, alice, "hello", models.MessageText)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, msg.Status)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "alice", msg.Username)

	// content at rest is ciphertext
	stored, err := f.store.GetMessageByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "hello", stored.Content)
	assert.NotContains(t, stored.Content, "hello")

	events := f.notifier.byEvent("new_message")
	require.Len(t, events, 1)
	assert.Equal(t, chatID, events[0].ChatID)
}

func TestSendMessageDefaultsToText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	msg, err := f.messages.SendMessage(ctx, chatID, alice, "hi", "")
	require.NoError(t, err)
	assert.Equal(t, models.MessageText, msg.Type)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	_, err := f.messages.SendMessage(ctx, chatID, alice, "", models.MessageText)
	assert.Equal(t, models.KindValidationFailed, models.KindOf(err))

	_, err = f.messages.SendMessage(ctx, chatID, alice, "x", "sticker")
	assert.Equal(t, models.KindValidationFailed, models.KindOf(err))
}

func TestSendMessageRequiresMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	eve := f.addUser(t, "eve")
	chatID := f.directChat(t, alice, bob)

	_, err := f.messages.SendMessage(ctx, chatID, eve, "hi", models.MessageText)
	assert.Equal(t, models.KindForbidden, models.KindOf(err))

	_, err = f.messages.SendMessage(ctx, 999, alice, "hi", models.MessageText)
	assert.Equal(t, models.KindNotFound, models.KindOf(err))
}

func TestSendMessageBumpsLastMessageAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	f.clock.Advance(time.Hour)
	_, err := f.messages.SendMessage(ctx, chatID, alice, "hi", models.MessageText)
	require.NoError(t, err)

	chat, err := f.store.GetChatByID(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), chat.LastMessageAt)
}

func TestLastMessageAtIsLatestOfOverlappingSends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	f.clock.Advance(time.Minute)
	earlier := f.clock.Now()
	_, err := f.messages.SendMessage(ctx, chatID, alice, "first", models.MessageText)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	later := f.clock.Now()
	_, err = f.messages.SendMessage(ctx, chatID, bob, "second", models.MessageText)
	require.NoError(t, err)

	// the earlier send's touch landing after the later one must not win
	require.NoError(t, f.store.TouchLastMessage(ctx, chatID, earlier))

	chat, err := f.store.GetChatByID(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, later, chat.LastMessageAt)
}

func TestFetchMessagesAdvancesToDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	sent, err := f.messages.SendMessage(ctx, chatID, alice, "hello", models.MessageText)
	require.NoError(t, err)

	msgs, err := f.messages.FetchMessages(ctx, chatID, bob)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.StatusDelivered, msgs[0].Status)
	assert.Equal(t, "hello", msgs[0].Content)

	events := f.notifier.byEvent("messages_delivered")
	require.Len(t, events, 1)
	assert.Equal(t, chatID, events[0].ChatID)
	assert.Equal(t, []int{sent.ID}, events[0].Data["message_ids"])
}

func TestFetchBySenderLeavesStatusAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	_, err := f.messages.SendMessage(ctx, chatID, alice, "hello", models.MessageText)
	require.NoError(t, err)

	msgs, err := f.messages.FetchMessages(ctx, chatID, alice)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.StatusSent, msgs[0].Status)
	assert.Empty(t, f.notifier.byEvent("messages_delivered"))
}

func TestMarkReadBatchesOneEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	for i := 0; i < 3; i++ {
		_, err := f.messages.SendMessage(ctx, chatID, alice, fmt.Sprintf("m%d", i), models.MessageText)
		require.NoError(t, err)
	}

	require.NoError(t, f.messages.MarkRead(ctx, chatID, bob))

	events := f.notifier.byEvent("messages_read")
	require.Len(t, events, 1)
	assert.Equal(t, bob, events[0].Data["reader_id"])

	msgs, err := f.store.MessagesForChat(ctx, chatID)
	require.NoError(t, err)
	for _, msg := range msgs {
		assert.Equal(t, models.StatusRead, msg.Status)
	}

	// nothing left to advance, no second event
	require.NoError(t, f.messages.MarkRead(ctx, chatID, bob))
	assert.Len(t, f.notifier.byEvent("messages_read"), 1)
}

func TestStatusNeverRegresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	msg, err := f.messages.SendMessage(ctx, chatID, alice, "hello", models.MessageText)
	require.NoError(t, err)

	require.NoError(t, f.messages.MarkRead(ctx, chatID, bob))

	// a late fetch must not pull read back to delivered
	_, err = f.messages.FetchMessages(ctx, chatID, bob)
	require.NoError(t, err)

	stored, err := f.store.GetMessageByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, stored.Status)
}

func TestConcurrentFetchAndMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	var ids []int
	for i := 0; i < 10; i++ {
		msg, err := f.messages.SendMessage(ctx, chatID, alice, fmt.Sprintf("m%d", i), models.MessageText)
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.messages.FetchMessages(ctx, chatID, bob)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, f.messages.MarkRead(ctx, chatID, bob))
		}()
	}
	wg.Wait()

	for _, id := range ids {
		stored, err := f.store.GetMessageByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRead, stored.Status)
	}
}

func TestConcurrentSendsAllPersist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := alice
			if i%2 == 0 {
				sender = bob
			}
			_, err := f.messages.SendMessage(ctx, chatID, sender, fmt.Sprintf("m%d", i), models.MessageText)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	msgs, err := f.store.MessagesForChat(ctx, chatID)
	require.NoError(t, err)
	assert.Len(t, msgs, n)
	for i := 1; i < len(msgs); i++ {
		assert.Less(t, msgs[i-1].ID, msgs[i].ID)
	}
}

func TestEditMessageOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	msg, err := f.messages.SendMessage(ctx, chatID, alice, "hello", models.MessageText)
	require.NoError(t, err)

	_, err = f.messages.EditMessage(ctx, msg.ID, bob, "hacked")
	assert.Equal(t, models.KindForbidden, models.KindOf(err))

	edited, err := f.messages.EditMessage(ctx, msg.ID, alice, "hello again")
	require.NoError(t, err)
	assert.Equal(t, "hello again", edited.Content)
	assert.Equal(t, "alice", edited.Username)

	stored, err := f.store.GetMessageByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "hello again", stored.Content)

	events := f.notifier.byEvent("update_message")
	require.Len(t, events, 1)
	assert.Equal(t, chatID, events[0].ChatID)
	// the broadcast names the sender, same shape as new_message
	broadcast, ok := events[0].Data["message"].(models.Message)
	require.True(t, ok)
	assert.Equal(t, "alice", broadcast.Username)
}

func TestDeleteMessageOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	msg, err := f.messages.SendMessage(ctx, chatID, alice, "hello", models.MessageText)
	require.NoError(t, err)

	err = f.messages.DeleteMessage(ctx, msg.ID, bob)
	assert.Equal(t, models.KindForbidden, models.KindOf(err))

	require.NoError(t, f.messages.DeleteMessage(ctx, msg.ID, alice))
	_, err = f.store.GetMessageByID(ctx, msg.ID)
	assert.Equal(t, models.KindNotFound, models.KindOf(err))

	events := f.notifier.byEvent("delete_message")
	require.Len(t, events, 1)
	assert.Equal(t, msg.ID, events[0].Data["id"])
}

func TestArchiveIsPerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	require.NoError(t, f.messages.ArchiveChat(ctx, chatID, alice))

	aliceChats, err := f.messages.ListChats(ctx, alice)
	require.NoError(t, err)
	require.Len(t, aliceChats, 1)
	assert.True(t, aliceChats[0].Archived)

	bobChats, err := f.messages.ListChats(ctx, bob)
	require.NoError(t, err)
	require.Len(t, bobChats, 1)
	assert.False(t, bobChats[0].Archived)

	require.NoError(t, f.messages.UnarchiveChat(ctx, chatID, alice))
	aliceChats, err = f.messages.ListChats(ctx, alice)
	require.NoError(t, err)
	assert.False(t, aliceChats[0].Archived)
}

func TestNewMessageClearsVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	require.NoError(t, f.messages.ArchiveChat(ctx, chatID, alice))
	require.NoError(t, f.messages.DeleteChatForUser(ctx, chatID, bob))

	_, err := f.messages.SendMessage(ctx, chatID, alice, "ping", models.MessageText)
	require.NoError(t, err)

	archived, deleted, err := f.store.GetVisibility(ctx, chatID, alice)
	require.NoError(t, err)
	assert.False(t, archived)
	assert.False(t, deleted)

	archived, deleted, err = f.store.GetVisibility(ctx, chatID, bob)
	require.NoError(t, err)
	assert.False(t, archived)
	assert.False(t, deleted)
}

func TestVisibilityRequiresMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	eve := f.addUser(t, "eve")
	chatID := f.directChat(t, alice, bob)

	assert.Equal(t, models.KindForbidden, models.KindOf(f.messages.ArchiveChat(ctx, chatID, eve)))
	assert.Equal(t, models.KindForbidden, models.KindOf(f.messages.DeleteChatForUser(ctx, chatID, eve)))
	assert.Equal(t, models.KindNotFound, models.KindOf(f.messages.ArchiveChat(ctx, 999, alice)))
}

func TestListChatsOverview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chatID := f.directChat(t, alice, bob)

	_, err := f.messages.SendMessage(ctx, chatID, alice, "one", models.MessageText)
	require.NoError(t, err)
	_, err = f.messages.SendMessage(ctx, chatID, alice, "two", models.MessageText)
	require.NoError(t, err)

	chats, err := f.messages.ListChats(ctx, bob)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	// a direct chat is titled with the other side's name
	assert.Equal(t, "alice", chats[0].Name)
	assert.Equal(t, 2, chats[0].UnreadCount)

	require.NoError(t, f.messages.MarkRead(ctx, chatID, bob))
	chats, err = f.messages.ListChats(ctx, bob)
	require.NoError(t, err)
	assert.Zero(t, chats[0].UnreadCount)
}

func TestListChatsGroupNameDecrypted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")

	group, err := f.members.CreateGroupDirect(ctx, alice, "Weekend Plans", nil)
	require.NoError(t, err)
	assert.Equal(t, "Weekend Plans", group.Name)

	chats, err := f.messages.ListChats(ctx, alice)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Weekend Plans", chats[0].Name)
}
