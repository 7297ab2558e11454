package models

import "time"

// LockoutState tracks consecutive failed logins for one identity. It is
// created lazily on the first failure and reset to the zero value on any
// successful login. A set LockedUntil in the past reads as unlocked.
type LockoutState struct {
	FailedCount int        `json:"failed_count"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// Locked reports whether the identity is locked at the given instant, and
// if so for how much longer.
func (s LockoutState) Locked(now time.Time) (bool, time.Duration) {
	if s.LockedUntil == nil || !now.Before(*s.LockedUntil) {
		return false, 0
	}
	return true, s.LockedUntil.Sub(now)
}
