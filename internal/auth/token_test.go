package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paylode/paylode/internal/models"
)

const testSecret = "test-secret-key-of-reasonable-length"

func testUser() *models.User {
	return &models.User{
		ID:   "user-1",
		Role: models.RoleUser,
	}
}

func TestIssuePair_VerifyRoundTrip(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)

	pair, err := tm.IssuePair(testUser(), "session-1", false)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := tm.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "session-1", claims.SessionID)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.Equal(t, models.TokenTypeAccess, claims.Type)
	assert.False(t, claims.TOTPVerified)

	refreshClaims, err := tm.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeRefresh, refreshClaims.Type)
	assert.Equal(t, "session-1", refreshClaims.SessionID)
}

func TestVerifyAccess_RejectsRefreshToken(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)

	pair, err := tm.IssuePair(testUser(), "session-1", false)
	require.NoError(t, err)

	_, err = tm.VerifyAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	_, err = tm.VerifyRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestVerifyAccess_Expired(t *testing.T) {
	tm := NewTokenManager(testSecret, -1*time.Minute, 7*24*time.Hour)

	pair, err := tm.IssuePair(testUser(), "session-1", false)
	require.NoError(t, err)

	_, err = tm.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
	assert.NotErrorIs(t, err, models.ErrTokenInvalid)
}

func TestVerifyAccess_Malformed(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := tm.VerifyAccess(token)
		assert.ErrorIs(t, err, models.ErrTokenInvalid, "token %q", token)
	}
}

func TestVerifyAccess_WrongSecret(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)
	other := NewTokenManager("a-different-secret-entirely-here", 15*time.Minute, 7*24*time.Hour)

	pair, err := other.IssuePair(testUser(), "session-1", false)
	require.NoError(t, err)

	_, err = tm.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestVerifyAccess_RejectsUnsignedAlg(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)

	claims := &models.TokenClaims{
		Type:      models.TokenTypeAccess,
		Role:      models.RoleSuperAdmin,
		SessionID: "session-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tm.VerifyAccess(unsigned)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestIssuePair_TOTPVerifiedOnlyOnAccess(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)

	pair, err := tm.IssuePair(testUser(), "session-1", true)
	require.NoError(t, err)

	claims, err := tm.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.TOTPVerified)

	refreshClaims, err := tm.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.False(t, refreshClaims.TOTPVerified)
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("token-a")
	h2 := HashToken("token-a")
	h3 := HashToken("token-b")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
	assert.False(t, strings.Contains(h1, "token"))
}
