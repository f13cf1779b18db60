package models

import "strconv"

// Account is either a User or a Coach, tagged by Role.
type Account struct {
	Role  Role
	User  *User
	Coach *Coach
}

func UserAccount(u *User) *Account {
	return &Account{Role: RoleUser, User: u}
}

func CoachAccount(c *Coach) *Account {
	return &Account{Role: RoleCoach, Coach: c}
}

// ID returns the account id as a string; coach ids are decimal.
func (a *Account) ID() string {
	switch a.Role {
	case RoleCoach:
		return strconv.FormatInt(a.Coach.ID, 10)
	default:
		return a.User.ID
	}
}

func (a *Account) Contact() Contact {
	if a.Role == RoleCoach {
		return a.Coach.Contact()
	}
	return a.User.Contact()
}

func (a *Account) DisplayName() string {
	if a.Role == RoleCoach {
		return a.Coach.Name
	}
	return a.User.Name
}

// ChatIdentity returns the external chat uid and member id, empty when
// the account has none yet.
func (a *Account) ChatIdentity() (uid, memberID string) {
	if a.Role == RoleCoach {
		return a.Coach.ChatUID, a.Coach.ChatMemberID
	}
	return a.User.ChatUserID, a.User.ChatMemberID
}
