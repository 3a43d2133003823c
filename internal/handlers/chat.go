package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"PulseMessenger/server/internal/appMiddleware"
	"PulseMessenger/server/internal/models"
	"PulseMessenger/server/internal/services"
)

type ChatHandler struct {
	Messages services.MessageService
	Members  services.MembershipService
}

func identity(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID, ok := appMiddleware.UserID(r.Context())
	if !ok {
		writeError(w, models.E(models.KindUnauthenticated, "missing identity"))
		return 0, false
	}
	return userID, true
}

func chatParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	chatID, err := strconv.Atoi(chi.URLParam(r, "chat_id"))
	if err != nil || chatID <= 0 {
		writeError(w, models.E(models.KindValidationFailed, "invalid chat id"))
		return 0, false
	}
	return chatID, true
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	chats, err := h.Messages.ListChats(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (h *ChatHandler) CreateDirect(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		UserID int `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeError(w, models.E(models.KindValidationFailed, "user_id is required"))
		return
	}

	chat, err := h.Members.CreateDirectChat(r.Context(), userID, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, chat)
}

func (h *ChatHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		GroupName string `json:"group_name"`
		UserIDs   []int  `json:"user_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.E(models.KindValidationFailed, "invalid request body"))
		return
	}

	chat, err := h.Members.CreateGroupDirect(r.Context(), userID, req.GroupName, req.UserIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, chat)
}

func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	chatID, ok := chatParam(w, r)
	if !ok {
		return
	}

	messages, err := h.Messages.FetchMessages(r.Context(), chatID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	chatID, ok := chatParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Content string             `json:"content"`
		Type    models.MessageType `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.E(models.KindValidationFailed, "invalid request body"))
		return
	}

	msg, err := h.Messages.SendMessage(r.Context(), chatID, userID, req.Content, req.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *ChatHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	messageID, err := strconv.Atoi(chi.URLParam(r, "message_id"))
	if err != nil || messageID <= 0 {
		writeError(w, models.E(models.KindValidationFailed, "invalid message id"))
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.E(models.KindValidationFailed, "invalid request body"))
		return
	}

	msg, err := h.Messages.EditMessage(r.Context(), messageID, userID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	messageID, err := strconv.Atoi(chi.URLParam(r, "message_id"))
	if err != nil || messageID <= 0 {
		writeError(w, models.E(models.KindValidationFailed, "invalid message id"))
		return
	}

	if err := h.Messages.DeleteMessage(r.Context(), messageID, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	chatID, ok := chatParam(w, r)
	if !ok {
		return
	}

	if err := h.Messages.MarkRead(r.Context(), chatID, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Marked as read"})
}

func (h *ChatHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.visibility(w, r, h.Messages.ArchiveChat, "Archived")
}

func (h *ChatHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	h.visibility(w, r, h.Messages.UnarchiveChat, "Unarchived")
}

func (h *ChatHandler) DeleteForMe(w http.ResponseWriter, r *http.Request) {
	h.visibility(w, r, h.Messages.DeleteChatForUser, "Deleted")
}

func (h *ChatHandler) visibility(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, chatID, userID int) error, message string) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	chatID, ok := chatParam(w, r)
	if !ok {
		return
	}

	if err := op(r.Context(), chatID, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}
