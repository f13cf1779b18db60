package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// Coach is a coach account. ChatUID is generated at creation and never changes.
type Coach struct {
	ID           int64          `db:"id" json:"id"`
	Phone        string         `db:"phone" json:"phone"`
	Email        string         `db:"email" json:"email"`
	CountryCode  string         `db:"country_code" json:"countryCode"`
	Name         string         `db:"name" json:"name"`
	Title        string         `db:"title" json:"title"`
	Specialty    string         `db:"specialty" json:"specialty"`
	Bio          string         `db:"bio" json:"bio"`
	Tags         pq.StringArray `db:"tags" json:"tags"`
	ImageURL     string         `db:"image_url" json:"imageUrl"`
	ChatUID      string         `db:"chat_uid" json:"chatUid"`
	ChatMemberID string         `db:"chat_member_id" json:"chatMemberId"`
	IsActive     bool           `db:"is_active" json:"isActive"`
	VerifierID   string         `db:"verifier_id" json:"-"`
	LastLoginAt  *time.Time     `db:"last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`
}

func (c *Coach) Contact() Contact {
	return Contact{Phone: c.Phone, Email: c.Email, CountryCode: c.CountryCode}
}

const DefaultCoachTitle = "Relationship Coach"

// CoachProfile is the public projection of a coach.
type CoachProfile struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Title     string   `json:"title"`
	Specialty string   `json:"specialty"`
	Bio       string   `json:"bio"`
	ImageURL  string   `json:"imageUrl"`
	Tags      []string `json:"tags"`
}

// EmptyCoachProfile is served when no coach exists for the id.
func EmptyCoachProfile(id int64) *CoachProfile {
	return &CoachProfile{ID: id, Tags: []string{}}
}

func (c *Coach) Profile() *CoachProfile {
	tags := []string(c.Tags)
	if tags == nil {
		tags = []string{}
	}
	return &CoachProfile{
		ID:        c.ID,
		Name:      c.Name,
		Title:     c.Title,
		Specialty: c.Specialty,
		Bio:       c.Bio,
		ImageURL:  c.ImageURL,
		Tags:      tags,
	}
}

// CoachProfilePatch describes a profile update. Name, Title and Specialty
// only overwrite when non-empty; the pointer fields overwrite whenever set.
type CoachProfilePatch struct {
	Name      string
	Title     string
	Specialty string
	Bio       *string
	ImageURL  *string
	Tags      *[]string
}

// NormalizeTags trims tags, drops empties and keeps the first occurrence
// of each tag in its original position.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
