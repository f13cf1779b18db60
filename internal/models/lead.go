package models

import "time"

const LeadEventNew = "lead_new"

// LeadEvent is pushed to the coach lead feed when a handoff completes.
type LeadEvent struct {
	Type             string    `json:"type"`
	CoachUID         string    `json:"coach_uid"`
	UserID           string    `json:"user_id"`
	ChatUID          string    `json:"chat_uid,omitempty"`
	Name             string    `json:"name"`
	AgeRange         string    `json:"age_range"`
	Gender           string    `json:"gender"`
	SituationPreview string    `json:"situation_preview"`
	MessageSent      bool      `json:"message_sent"`
	Timestamp        time.Time `json:"timestamp"`
}
