package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"PulseMessenger/server/internal/crypto"
	"PulseMessenger/server/internal/models"
	"PulseMessenger/server/internal/storage/memstore"
)

type recordedEvent struct {
	UserID int
	ChatID int
	Event  string
	Data   map[string]interface{}
}

// recordNotifier captures emitted events instead of pushing them to sockets.
type recordNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordNotifier) EmitToUser(userID int, event string, data interface{}) {
	n.record(recordedEvent{UserID: userID, Event: event, Data: asMap(data)})
}

func (n *recordNotifier) EmitToChat(chatID int, event string, data interface{}) {
	n.record(recordedEvent{ChatID: chatID, Event: event, Data: asMap(data)})
}

func (n *recordNotifier) record(ev recordedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordNotifier) byEvent(event string) []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []recordedEvent
	for _, ev := range n.events {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

func asMap(data interface{}) map[string]interface{} {
	if m, ok := data.(map[string]interface{}); ok {
		return m
	}
	return nil
}

type fixture struct {
	store    *memstore.Store
	notifier *recordNotifier
	clock    *clockwork.FakeClock
	members  MembershipService
	messages MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cipher, err := crypto.New("01234567890123456789012345678901")
	require.NoError(t, err)

	store := memstore.New()
	notifier := &recordNotifier{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	return &fixture{
		store:    store,
		notifier: notifier,
		clock:    clock,
		members:  NewMembershipService(store, notifier, cipher, clock),
		messages: NewMessageService(store, notifier, cipher, clock),
	}
}

func (f *fixture) addUser(t *testing.T, username string) int {
	t.Helper()

	id, err := f.store.CreateUser(context.Background(), &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsVerified:   true,
	})
	require.NoError(t, err)
	return id
}

// directChat wires two users into an accepted direct chat without going
// through the invite flow.
func (f *fixture) directChat(t *testing.T, userA, userB int) int {
	t.Helper()
	ctx := context.Background()

	chat, err := f.members.CreateDirectChat(ctx, userA, userB)
	require.NoError(t, err)
	return chat.ID
}
