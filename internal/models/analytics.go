package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	EventLeadCaptured   = "Lead Captured"
	EventLeadFormSubmit = "lead_form_submit"
)

// AnalyticsEvent is a single tracked event. IPHash is a keyed hash; raw
// client addresses are never stored.
type AnalyticsEvent struct {
	ID         primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	DistinctID string                 `bson:"distinct_id" json:"distinctId"`
	Name       string                 `bson:"name" json:"eventName"`
	Properties map[string]interface{} `bson:"properties,omitempty" json:"properties,omitempty"`
	Source     string                 `bson:"source" json:"source"`
	IPHash     string                 `bson:"ip_hash,omitempty" json:"-"`
	UserAgent  string                 `bson:"user_agent,omitempty" json:"-"`
	CreatedAt  time.Time              `bson:"created_at" json:"createdAt"`
}
