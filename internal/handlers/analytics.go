package handlers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/AnshRaj112/lovedoctor-backend/internal/services"
	"github.com/AnshRaj112/lovedoctor-backend/pkg/clientip"
)

type trackEventRequest struct {
	DistinctID string                 `json:"distinctId"`
	EventName  string                 `json:"eventName"`
	Properties map[string]interface{} `json:"properties"`
}

// clientEvent fills the request derived fields of an analytics event.
func (h *Handler) clientEvent(r *http.Request, distinctID, name string, props map[string]interface{}) models.AnalyticsEvent {
	return models.AnalyticsEvent{
		DistinctID: distinctID,
		Name:       name,
		Properties: props,
		Source:     "client",
		IPHash:     h.Hasher.Hash(clientip.FromRequest(r, h.TrustProxy)),
		UserAgent:  r.UserAgent(),
		CreatedAt:  h.now().UTC(),
	}
}

// TrackEvent records a client analytics event. Storage is asynchronous.
func (h *Handler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	var req trackEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "Missing required fields: distinctId and eventName")
		return
	}
	req.DistinctID = strings.TrimSpace(req.DistinctID)
	req.EventName = strings.TrimSpace(req.EventName)
	if req.DistinctID == "" || req.EventName == "" {
		writeMessage(w, r, http.StatusBadRequest, "Missing required fields: distinctId and eventName")
		return
	}
	if req.Properties == nil {
		req.Properties = map[string]interface{}{}
	}

	h.Tracker.Track(h.clientEvent(r, req.DistinctID, req.EventName, req.Properties))
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"success": true, "message": "Event tracked successfully"})
}

type leadRequest struct {
	Situation          string   `json:"situation"`
	Name               string   `json:"name"`
	AgeRange           string   `json:"ageRange"`
	Gender             string   `json:"gender"`
	FormCompletionTime *float64 `json:"formCompletionTime"`
}

// SubmitLead records an anonymous lead form submission and hands back the
// distinct id the client should use for further events.
func (h *Handler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	var req leadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "Missing required fields")
		return
	}
	if strings.TrimSpace(req.Situation) == "" || strings.TrimSpace(req.Name) == "" ||
		strings.TrimSpace(req.AgeRange) == "" || strings.TrimSpace(req.Gender) == "" {
		writeMessage(w, r, http.StatusBadRequest, "Missing required fields")
		return
	}

	now := h.now()
	distinctID := services.NewLeadDistinctID(now)
	pageURL := r.Referer()
	if pageURL == "" {
		pageURL = "unknown"
	}
	props := map[string]interface{}{
		"situation_length": utf8.RuneCountInString(req.Situation),
		"user_name":        strings.TrimSpace(req.Name),
		"user_age_range":   req.AgeRange,
		"user_gender":      req.Gender,
		"page_url":         pageURL,
		"timestamp":        now.UnixMilli(),
	}
	if req.FormCompletionTime != nil {
		props["form_completion_time"] = *req.FormCompletionTime
	}

	h.Tracker.Track(h.clientEvent(r, distinctID, models.EventLeadFormSubmit, props))
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Form submitted successfully",
		"distinctId": distinctID,
	})
}
