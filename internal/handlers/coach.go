package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/AnshRaj112/lovedoctor-backend/internal/middleware"
	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
)

func parseCoachID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// GetCoachProfile serves the public profile for ?id=. Unknown coaches get
// an empty profile rather than a 404.
func (h *Handler) GetCoachProfile(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id")
	if strings.TrimSpace(raw) == "" {
		writeMessage(w, r, http.StatusBadRequest, "Coach ID is required")
		return
	}
	id, ok := parseCoachID(raw)
	if !ok {
		writeMessage(w, r, http.StatusBadRequest, "Invalid coach ID")
		return
	}

	profile, err := h.Profiles.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "Failed to fetch profile")
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

// profileUpdate distinguishes absent fields from empty ones for bio,
// imageUrl and tags. id may be sent as a number or a string.
type profileUpdate struct {
	ID        json.Number `json:"id"`
	Name      string      `json:"name"`
	Title     string      `json:"title"`
	Specialty string      `json:"specialty"`
	Bio       *string     `json:"bio"`
	ImageURL  *string     `json:"imageUrl"`
	Tags      *[]string   `json:"tags"`
}

// UpdateCoachProfile applies a profile update. Coaches may only edit their
// own profile.
func (h *Handler) UpdateCoachProfile(w http.ResponseWriter, r *http.Request) {
	var req profileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID == "" {
		writeMessage(w, r, http.StatusBadRequest, "Coach ID is required")
		return
	}
	id, ok := parseCoachID(req.ID.String())
	if !ok {
		writeMessage(w, r, http.StatusBadRequest, "Invalid coach ID")
		return
	}

	profile, err := h.Profiles.Update(r.Context(), middleware.SessionFromContext(r.Context()), id, models.CoachProfilePatch{
		Name:      req.Name,
		Title:     req.Title,
		Specialty: req.Specialty,
		Bio:       req.Bio,
		ImageURL:  req.ImageURL,
		Tags:      req.Tags,
	})
	if err != nil {
		writeError(w, r, err, "Failed to update profile")
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

// ListCoaches returns the coaches offered for a chat handoff.
func (h *Handler) ListCoaches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"success": true, "coaches": h.Directory.List()})
}
