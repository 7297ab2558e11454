package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "type" claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenClaims are the signed claims carried by access and refresh tokens.
// Subject is the user ID. Access tokens are verified statelessly; the
// SessionID ties every token back to its rotation chain so that revocation
// and reuse detection can reach tokens that are individually still valid.
type TokenClaims struct {
	Type         string `json:"type"`
	Role         Role   `json:"role"`
	SessionID    string `json:"sid"`
	TOTPVerified bool   `json:"totp_verified,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *TokenClaims) UserID() string {
	return c.Subject
}

// TokenPair is an access/refresh token pair as issued to clients.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
