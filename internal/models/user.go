package models

import (
	"time"
)

// Account statuses. Accounts are never hard-deleted, only disabled.
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	FullName     string
	Role         Role
	Status       string // "active", "disabled"

	TOTPSecret  *string // encrypted at rest, nil when TOTP not enrolled
	TOTPEnabled bool

	PasswordChangedAt *time.Time // for invalidating tokens issued before a change
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Active reports whether the account may authenticate.
func (u *User) Active() bool {
	return u.Status == UserStatusActive
}
