// Package pool is the realtime fan-out layer. It maps user identities and
// chat identities to live connections and pushes events to them. Everything
// here is process-local and rebuilt from scratch on reconnect; the store
// stays the only authoritative state.
package pool

import (
	"log"
	"sync"
)

// Conn is the write side of a live connection. *websocket.Conn satisfies it;
// tests substitute fakes.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	conn Conn

	// userID is 0 until the connection is identified.
	userID int
}

func NewClient(conn Conn) *Client {
	return &Client{conn: conn}
}

func (c *Client) UserID() int {
	return c.userID
}

type event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type Pool struct {
	mu sync.Mutex

	clients map[*Client]struct{}
	users   map[int]map[*Client]struct{}
	chats   map[int]map[*Client]struct{}

	// chat rooms joined per client, for cleanup on disconnect
	memberships map[*Client]map[int]struct{}
}

func New() *Pool {
	return &Pool{
		clients:     make(map[*Client]struct{}),
		users:       make(map[int]map[*Client]struct{}),
		chats:       make(map[int]map[*Client]struct{}),
		memberships: make(map[*Client]map[int]struct{}),
	}
}

func (p *Pool) Add(client *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clients[client] = struct{}{}
	p.memberships[client] = make(map[int]struct{})
}

// Identify joins the client to its user room. Identifying twice with the same
// id is a no-op; identifying with a different id moves the client.
func (p *Pool) Identify(client *Client, userID int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.clients[client]; !ok {
		return
	}
	if client.userID == userID {
		return
	}
	if client.userID != 0 {
		p.leaveUserLocked(client)
	}
	client.userID = userID
	if p.users[userID] == nil {
		p.users[userID] = make(map[*Client]struct{})
	}
	p.users[userID][client] = struct{}{}
	log.Printf("Connection identified as user %d", userID)
}

// JoinChat subscribes the client to a chat room. Joining is idempotent and a
// client may sit in any number of rooms.
func (p *Pool) JoinChat(client *Client, chatID int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.clients[client]; !ok {
		return
	}
	if p.chats[chatID] == nil {
		p.chats[chatID] = make(map[*Client]struct{})
	}
	p.chats[chatID][client] = struct{}{}
	p.memberships[client][chatID] = struct{}{}
}

// Remove drops the client from every room. Called on disconnect; no operation
// is left half-applied because durable writes never depend on the pool.
func (p *Pool) Remove(client *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(client)
}

func (p *Pool) removeLocked(client *Client) {
	if _, ok := p.clients[client]; !ok {
		return
	}
	delete(p.clients, client)
	p.leaveUserLocked(client)
	for chatID := range p.memberships[client] {
		delete(p.chats[chatID], client)
		if len(p.chats[chatID]) == 0 {
			delete(p.chats, chatID)
		}
	}
	delete(p.memberships, client)
}

func (p *Pool) leaveUserLocked(client *Client) {
	if client.userID == 0 {
		return
	}
	delete(p.users[client.userID], client)
	if len(p.users[client.userID]) == 0 {
		delete(p.users, client.userID)
	}
}

// EmitToUser pushes an event to every live connection of a user. Delivery is
// best-effort: a failed write closes and forgets that connection only.
func (p *Pool) EmitToUser(userID int, eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitLocked(p.users[userID], nil, eventType, data)
}

// EmitToChat pushes an event to every connection subscribed to a chat room.
func (p *Pool) EmitToChat(chatID int, eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitLocked(p.chats[chatID], nil, eventType, data)
}

// RelayToChat pushes an event to every room member except the originating
// client. Used for the ephemeral typing signals.
func (p *Pool) RelayToChat(chatID int, from *Client, eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitLocked(p.chats[chatID], from, eventType, data)
}

func (p *Pool) emitLocked(room map[*Client]struct{}, exclude *Client, eventType string, data interface{}) {
	var dead []*Client
	for client := range room {
		if client == exclude {
			continue
		}
		if err := client.conn.WriteJSON(event{Event: eventType, Data: data}); err != nil {
			log.Printf("Error sending %s event: %v", eventType, err)
			client.conn.Close()
			dead = append(dead, client)
		}
	}
	for _, client := range dead {
		p.removeLocked(client)
	}
}
