package handlers

import (
	"encoding/json"
	"net/http"

	"PulseMessenger/server/internal/appMiddleware"
	"PulseMessenger/server/internal/media"
	"PulseMessenger/server/internal/models"
	"PulseMessenger/server/internal/services"
)

type UserHandler struct {
	Users services.UserService
	Media *media.Store
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := appMiddleware.UserID(r.Context())
	if !ok {
		writeError(w, models.E(models.KindUnauthenticated, "missing identity"))
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, models.E(models.KindValidationFailed, "search term is required"))
		return
	}

	users, err := h.Users.SearchUsers(r.Context(), query, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := appMiddleware.UserID(r.Context())
	if !ok {
		writeError(w, models.E(models.KindUnauthenticated, "missing identity"))
		return
	}

	user, err := h.Users.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile accepts multipart form data so a profile picture can ride
// along with the text fields.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := appMiddleware.UserID(r.Context())
	if !ok {
		writeError(w, models.E(models.KindUnauthenticated, "missing identity"))
		return
	}

	var aboutMe, picture *string

	contentType := r.Header.Get("Content-Type")
	if len(contentType) >= 19 && contentType[:19] == "multipart/form-data" {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			writeError(w, models.E(models.KindValidationFailed, "invalid form data"))
			return
		}
		if values, ok := r.MultipartForm.Value["about_me"]; ok && len(values) > 0 {
			aboutMe = &values[0]
		}
		if file, header, err := r.FormFile("profile_picture"); err == nil {
			defer file.Close()
			ref, _, err := h.Media.Save(file, header.Filename)
			if err != nil {
				writeError(w, err)
				return
			}
			picture = &ref
		}
	} else {
		var req struct {
			AboutMe *string `json:"about_me"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, models.E(models.KindValidationFailed, "invalid request body"))
			return
		}
		aboutMe = req.AboutMe
	}

	user, err := h.Users.UpdateProfile(r.Context(), userID, aboutMe, picture)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
