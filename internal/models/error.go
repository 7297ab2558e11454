package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTOTPRequired       = errors.New("totp verification required")
	ErrTOTPInvalid        = errors.New("invalid totp code")

	// Token errors
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenReused  = errors.New("refresh token reuse detected")

	// Authorization errors
	ErrInsufficientRole = errors.New("insufficient role")

	// Account state errors
	ErrAccountDisabled = errors.New("account is disabled")

	// Durability layer errors
	ErrStoreUnavailable = errors.New("backing store unavailable")
)

// AccountLockedError is returned when login is gated by the lockout policy.
// RetryAfter is how long until the lock elapses.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account is temporarily locked, retry after %s", e.RetryAfter)
}

// Is allows errors.Is(err, ErrAccountLocked) matching regardless of RetryAfter.
func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// ErrAccountLocked is the match target for AccountLockedError.
var ErrAccountLocked = errors.New("account is temporarily locked")
