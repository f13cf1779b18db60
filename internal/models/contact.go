package models

import "strings"

// DefaultCountryCode is applied to new accounts created without one.
const DefaultCountryCode = "+91"

// Contact is the verified contact of an account. Empty strings mean absent.
type Contact struct {
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	CountryCode string `json:"countryCode"`
}

// Normalize trims every field and lower-cases the email.
func (c Contact) Normalize() Contact {
	return Contact{
		Phone:       strings.TrimSpace(c.Phone),
		Email:       strings.ToLower(strings.TrimSpace(c.Email)),
		CountryCode: strings.TrimSpace(c.CountryCode),
	}
}

// IsEmpty reports whether neither phone nor email is present.
func (c Contact) IsEmpty() bool {
	return c.Phone == "" && c.Email == ""
}

// LookupField names a column accounts can be found by.
type LookupField string

const (
	LookupVerifierID LookupField = "verifier_id"
	LookupPhone      LookupField = "phone"
	LookupEmail      LookupField = "email"
)

// Backfill carries incoming verified data applied on re-authentication.
// Empty values leave the stored field untouched.
type Backfill struct {
	Phone       string
	Email       string
	CountryCode string
	Name        string
	VerifierID  string
}
