package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"PulseMessenger/server/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := models.KindOf(err)
	message := err.Error()
	if kind == models.KindInternal {
		log.Printf("Internal error: %+v", err)
		message = "internal server error"
	}
	writeJSON(w, statusFor(kind), map[string]string{
		"error": message,
		"kind":  string(kind),
	})
}

func statusFor(kind models.Kind) int {
	switch kind {
	case models.KindUnauthenticated:
		return http.StatusUnauthorized
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindDuplicateInvite, models.KindInvalidTransition:
		return http.StatusConflict
	case models.KindChatGone:
		return http.StatusGone
	case models.KindValidationFailed:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
