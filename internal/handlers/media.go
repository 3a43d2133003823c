package handlers

import (
	"net/http"

	"PulseMessenger/server/internal/appMiddleware"
	"PulseMessenger/server/internal/media"
	"PulseMessenger/server/internal/models"
)

type MediaHandler struct {
	Media *media.Store
}

// Upload stores a blob and returns the reference to use as message content
// for image/video/audio messages.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if _, ok := appMiddleware.UserID(r.Context()); !ok {
		writeError(w, models.E(models.KindUnauthenticated, "missing identity"))
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, models.E(models.KindValidationFailed, "invalid form data"))
		return
	}

	file, header, err := r.FormFile("media")
	if err != nil {
		writeError(w, models.E(models.KindValidationFailed, "media file is required"))
		return
	}
	defer file.Close()

	ref, msgType, err := h.Media.Save(file, header.Filename)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"content": ref,
		"type":    msgType,
	})
}
