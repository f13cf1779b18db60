package models

import (
	"fmt"
	"strings"
)

// Role is fixed when a session is issued and is never re-derived from storage.
type Role string

const (
	RoleUser  Role = "user"
	RoleCoach Role = "coach"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleCoach
}

func (r Role) String() string {
	return string(r)
}

// ParseRole accepts "user" or "coach" in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
