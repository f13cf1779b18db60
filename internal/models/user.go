package models

import (
	"time"

	"github.com/lib/pq"
)

// User is an end-user account. The chat identity is established lazily
// on the first chat handoff, never at creation.
type User struct {
	ID               string         `db:"id" json:"id"`
	Phone            string         `db:"phone" json:"phone"`
	Email            string         `db:"email" json:"email"`
	CountryCode      string         `db:"country_code" json:"countryCode"`
	Name             string         `db:"name" json:"name"`
	AgeRange         string         `db:"age_range" json:"ageRange"`
	Gender           Gender         `db:"gender" json:"gender"`
	CurrentSituation string         `db:"current_situation" json:"currentSituation"`
	Situations       pq.StringArray `db:"situations" json:"situations"`
	ChatUserID       string         `db:"chat_user_id" json:"chatUserId"`
	ChatMemberID     string         `db:"chat_member_id" json:"chatMemberId"`
	VerifierID       string         `db:"verifier_id" json:"-"`
	LastLoginAt      *time.Time     `db:"last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

func (u *User) Contact() Contact {
	return Contact{Phone: u.Phone, Email: u.Email, CountryCode: u.CountryCode}
}
