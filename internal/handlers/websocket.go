package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"PulseMessenger/server/internal/appMiddleware"
	"PulseMessenger/server/internal/models"
	"PulseMessenger/server/internal/pool"
	"PulseMessenger/server/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	Pool     *pool.Pool
	Auth     *appMiddleware.Auth
	Messages services.MessageService
}

// inboundEvent is what clients push over the socket. Token rides on identify
// because some clients cannot attach credentials to the initial handshake.
type inboundEvent struct {
	Event    string             `json:"event"`
	Token    string             `json:"token,omitempty"`
	ChatID   int                `json:"chat_id,omitempty"`
	Content  string             `json:"content,omitempty"`
	Type     models.MessageType `json:"type,omitempty"`
	Username string             `json:"username,omitempty"`
}

func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	var userID int
	var username string

	// Credentials at connection time are verified once, up front. A
	// connection without them stays unidentified until it sends identify.
	if tokenStr := r.URL.Query().Get("token"); tokenStr != "" {
		id, name, err := h.Auth.Parse(tokenStr)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		userID, username = id, name
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading to WebSocket: %v", err)
		return
	}

	client := pool.NewClient(conn)
	h.Pool.Add(client)
	defer func() {
		h.Pool.Remove(client)
		conn.Close()
	}()

	if userID != 0 {
		h.Pool.Identify(client, userID)
	}

	for {
		var msg inboundEvent
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("Connection closed for user %d: %v", client.UserID(), err)
			return
		}

		switch msg.Event {
		case "identify":
			// The identify payload carries a token, not a raw user id;
			// it goes through the same verification as HTTP requests.
			id, name, err := h.Auth.Parse(msg.Token)
			if err != nil {
				log.Printf("Rejected identify: %v", err)
				continue
			}
			userID, username = id, name
			h.Pool.Identify(client, userID)

		case "join_chat":
			if client.UserID() == 0 || msg.ChatID == 0 {
				continue
			}
			h.Pool.JoinChat(client, msg.ChatID)

		case "send_message":
			if client.UserID() == 0 {
				continue
			}
			_, err := h.Messages.SendMessage(context.Background(), msg.ChatID, client.UserID(), msg.Content, msg.Type)
			if err != nil {
				log.Printf("Error sending message from user %d to chat %d: %v", client.UserID(), msg.ChatID, err)
			}

		case "typing", "stop_typing":
			// Fire-and-forget; nothing is persisted and the sender is
			// excluded from the relay.
			if client.UserID() == 0 || msg.ChatID == 0 {
				continue
			}
			h.Pool.RelayToChat(msg.ChatID, client, msg.Event, map[string]interface{}{
				"chat_id":  msg.ChatID,
				"username": username,
			})

		default:
			log.Printf("Unknown event %q from user %d", msg.Event, client.UserID())
		}
	}
}
