package models

import "strings"

type AgeRange string

const (
	AgeRange18to24 AgeRange = "18-24"
	AgeRange25to34 AgeRange = "25-34"
	AgeRange35to44 AgeRange = "35-44"
	AgeRange45Plus AgeRange = "45+"
)

func ParseAgeRange(s string) (AgeRange, bool) {
	switch a := AgeRange(strings.TrimSpace(s)); a {
	case AgeRange18to24, AgeRange25to34, AgeRange35to44, AgeRange45Plus:
		return a, true
	}
	return "", false
}

// Gender is stored upper-case; forms send the lower-case form value.
type Gender string

const (
	GenderMale         Gender = "MALE"
	GenderFemale       Gender = "FEMALE"
	GenderNonBinary    Gender = "NON_BINARY"
	GenderPreferNotSay Gender = "PREFER_NOT_SAY"
)

var genderFormValues = map[Gender]string{
	GenderMale:         "male",
	GenderFemale:       "female",
	GenderNonBinary:    "non-binary",
	GenderPreferNotSay: "prefer-not-to-say",
}

// ParseGender accepts either the form value ("non-binary") or the stored
// value ("NON_BINARY").
func ParseGender(s string) (Gender, bool) {
	s = strings.TrimSpace(s)
	if g := Gender(strings.ToUpper(s)); genderFormValues[g] != "" {
		return g, true
	}
	for g, form := range genderFormValues {
		if strings.EqualFold(form, s) {
			return g, true
		}
	}
	return "", false
}

// FormValue returns the form representation, or "" for unknown values.
func (g Gender) FormValue() string {
	return genderFormValues[g]
}

// IntakeForm is the lead capture form submitted before a chat handoff.
type IntakeForm struct {
	Situation string `json:"situation"`
	Name      string `json:"name"`
	AgeRange  string `json:"ageRange"`
	Gender    string `json:"gender"`
	CoachID   int    `json:"coachId,omitempty"`
}

func (f IntakeForm) Trimmed() IntakeForm {
	return IntakeForm{
		Situation: strings.TrimSpace(f.Situation),
		Name:      strings.TrimSpace(f.Name),
		AgeRange:  strings.TrimSpace(f.AgeRange),
		Gender:    strings.TrimSpace(f.Gender),
		CoachID:   f.CoachID,
	}
}

// Intake is the validated form as persisted on the user.
type Intake struct {
	Name      string
	AgeRange  AgeRange
	Gender    Gender
	Situation string
}
