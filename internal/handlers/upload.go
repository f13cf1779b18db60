package handlers

import (
	"net/http"
	"strings"

	"github.com/AnshRaj112/lovedoctor-backend/internal/middleware"
)

const maxImageBytes = 5 << 20

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// UploadCoachImage stores the multipart "file" as the current coach's
// profile picture.
func (h *Handler) UploadCoachImage(w http.ResponseWriter, r *http.Request) {
	claims := middleware.SessionFromContext(r.Context())
	if claims == nil {
		writeMessage(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, ok := parseCoachID(claims.AccountID())
	if !ok {
		writeMessage(w, r, http.StatusForbidden, "You can only edit your own profile")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "Image must be 5MB or smaller")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, r, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		writeMessage(w, r, http.StatusBadRequest, "Only image files are allowed")
		return
	}

	profile, err := h.Profiles.UploadImage(r.Context(), claims, id, file)
	if err != nil {
		writeError(w, r, err, "Failed to upload file")
		return
	}
	writeJSON(w, r, http.StatusOK, uploadResponse{
		Success: true,
		Message: "File uploaded successfully",
		URL:     profile.ImageURL,
	})
}
