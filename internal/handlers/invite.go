package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"PulseMessenger/server/internal/appMiddleware"
	"PulseMessenger/server/internal/models"
	"PulseMessenger/server/internal/services"
)

type InviteHandler struct {
	Members services.MembershipService
}

func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := appMiddleware.UserID(r.Context())
	if !ok {
		writeError(w, models.E(models.KindUnauthenticated, "missing identity"))
		return
	}

	invites, err := h.Members.ListPendingInvites(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invites)
}

func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := appMiddleware.UserID(r.Context())
	if !ok {
		writeError(w, models.E(models.KindUnauthenticated, "missing identity"))
		return
	}

	var req struct {
		ReceiverID int    `json:"receiver_id"`
		GroupName  string `json:"group_name"`
		ChatID     *int   `json:"chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReceiverID == 0 {
		writeError(w, models.E(models.KindValidationFailed, "receiver_id is required"))
		return
	}

	var invite *models.Invite
	var err error
	if req.GroupName != "" || req.ChatID != nil {
		invite, err = h.Members.CreateGroupInvite(r.Context(), userID, req.ReceiverID, req.GroupName, req.ChatID)
	} else {
		invite, err = h.Members.CreateDirectInvite(r.Context(), userID, req.ReceiverID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

func (h *InviteHandler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, ok := appMiddleware.UserID(r.Context())
	if !ok {
		writeError(w, models.E(models.KindUnauthenticated, "missing identity"))
		return
	}

	inviteID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || inviteID <= 0 {
		writeError(w, models.E(models.KindValidationFailed, "invalid invite id"))
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.E(models.KindValidationFailed, "invalid request body"))
		return
	}

	var accept bool
	switch models.InviteStatus(req.Status) {
	case models.InviteAccepted:
		accept = true
	case models.InviteDeclined:
		accept = false
	default:
		writeError(w, models.E(models.KindValidationFailed, "status must be accepted or declined"))
		return
	}

	chat, err := h.Members.RespondToInvite(r.Context(), inviteID, userID, accept)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]interface{}{"status": req.Status}
	if chat != nil {
		resp["chat"] = chat
	}
	writeJSON(w, http.StatusOK, resp)
}
