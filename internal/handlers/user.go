package handlers

import (
	"net/http"

	"github.com/AnshRaj112/lovedoctor-backend/internal/middleware"
	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/AnshRaj112/lovedoctor-backend/internal/services"
)

type userInfo struct {
	ID               string      `json:"id"`
	Phone            string      `json:"phone"`
	Email            string      `json:"email"`
	Name             string      `json:"name"`
	CountryCode      string      `json:"countryCode"`
	AgeRange         string      `json:"ageRange"`
	Gender           *string     `json:"gender"`
	CurrentSituation string      `json:"currentSituation"`
	Situations       []string    `json:"situations"`
	ChatUserID       string      `json:"chatUserId"`
	ChatMemberID     string      `json:"chatMemberId"`
	Role             models.Role `json:"role"`
}

type coachInfo struct {
	ID           string      `json:"id"`
	Phone        string      `json:"phone"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	CountryCode  string      `json:"countryCode"`
	Title        string      `json:"title"`
	ChatUID      string      `json:"chatUid"`
	ChatMemberID string      `json:"chatMemberId"`
	Role         models.Role `json:"role"`
}

// infoOf projects an account for the account owner. Gender goes out as
// the form value.
func infoOf(acct *models.Account) interface{} {
	if acct.Role == models.RoleCoach {
		c := acct.Coach
		return coachInfo{
			ID:           acct.ID(),
			Phone:        c.Phone,
			Email:        c.Email,
			Name:         c.Name,
			CountryCode:  c.CountryCode,
			Title:        c.Title,
			ChatUID:      c.ChatUID,
			ChatMemberID: c.ChatMemberID,
			Role:         models.RoleCoach,
		}
	}

	u := acct.User
	var gender *string
	if g := u.Gender.FormValue(); g != "" {
		gender = &g
	}
	situations := []string(u.Situations)
	if situations == nil {
		situations = []string{}
	}
	return userInfo{
		ID:               u.ID,
		Phone:            u.Phone,
		Email:            u.Email,
		Name:             u.Name,
		CountryCode:      u.CountryCode,
		AgeRange:         u.AgeRange,
		Gender:           gender,
		CurrentSituation: u.CurrentSituation,
		Situations:       situations,
		ChatUserID:       u.ChatUserID,
		ChatMemberID:     u.ChatMemberID,
		Role:             models.RoleUser,
	}
}

// UserInfo returns the account behind the current session.
func (h *Handler) UserInfo(w http.ResponseWriter, r *http.Request) {
	acct, err := h.Accounts.Current(r.Context(), middleware.SessionFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err, "Server error")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"success": true, "user": infoOf(acct)})
}

type intakeSaved struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	AgeRange string        `json:"ageRange"`
	Gender   models.Gender `json:"gender"`
}

// SubmitUserInfo stores the intake form on the current user.
func (h *Handler) SubmitUserInfo(w http.ResponseWriter, r *http.Request) {
	claims := middleware.SessionFromContext(r.Context())
	if claims == nil {
		writeMessage(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var form models.IntakeForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.Handoff.SubmitIntake(r.Context(), claims.AccountID(), form)
	if err != nil {
		writeError(w, r, err, "Failed to submit user information")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "User information saved successfully",
		"user":    intakeSaved{ID: u.ID, Name: u.Name, AgeRange: u.AgeRange, Gender: u.Gender},
	})
}

type handoffResponse struct {
	Success bool `json:"success"`
	*services.HandoffResult
}

// ChatHandoff runs the intake to chat handoff for the current user.
func (h *Handler) ChatHandoff(w http.ResponseWriter, r *http.Request) {
	var form models.IntakeForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.Handoff.Run(r.Context(), middleware.SessionFromContext(r.Context()), form)
	if err != nil {
		writeError(w, r, err, "Failed to start chat. Please try again.")
		return
	}
	writeJSON(w, r, http.StatusOK, handoffResponse{Success: true, HandoffResult: result})
}
