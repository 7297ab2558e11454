package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/paylode/paylode/internal/models"
)

// TokenManager issues and verifies the signed access/refresh token pairs.
// Access tokens are verified statelessly; refresh tokens are additionally
// subject to the session registry's rotation decision, which is not made
// here.
type TokenManager struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry, refreshExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

// IssuePair issues an access/refresh pair bound to the user's session chain.
// totpVerified is carried on the access token for identities with TOTP
// enabled; it is false on the provisional token issued before code entry.
func (tm *TokenManager) IssuePair(user *models.User, sessionID string, totpVerified bool) (models.TokenPair, error) {
	accessToken, err := tm.sign(user, sessionID, models.TokenTypeAccess, tm.accessExpiry, totpVerified)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, err := tm.sign(user, sessionID, models.TokenTypeRefresh, tm.refreshExpiry, false)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return models.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (tm *TokenManager) sign(user *models.User, sessionID, tokenType string, expiry time.Duration, totpVerified bool) (string, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		Type:         tokenType,
		Role:         user.Role,
		SessionID:    sessionID,
		TOTPVerified: totpVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
}

// VerifyAccess validates an access token's signature and expiry. No
// registry lookup happens here; callers needing revocation guarantees use
// the session registry's stronger check on top.
func (tm *TokenManager) VerifyAccess(tokenString string) (*models.TokenClaims, error) {
	return tm.verify(tokenString, models.TokenTypeAccess)
}

// VerifyRefresh validates a refresh token's signature and expiry.
func (tm *TokenManager) VerifyRefresh(tokenString string) (*models.TokenClaims, error) {
	return tm.verify(tokenString, models.TokenTypeRefresh)
}

func (tm *TokenManager) verify(tokenString, wantType string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return tm.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		// Expiry is the only failure callers may distinguish; everything
		// else (bad signature, wrong alg, garbage) collapses into a single
		// invalid case so responses cannot become a verification oracle.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, models.ErrTokenInvalid
	}

	if !token.Valid || claims.Type != wantType || claims.Subject == "" || claims.SessionID == "" {
		return nil, models.ErrTokenInvalid
	}
	if !claims.Role.Valid() {
		return nil, models.ErrTokenInvalid
	}

	return claims, nil
}

// HashToken derives the registry representation of a refresh token. The
// registry only ever stores this digest, never the token itself.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
