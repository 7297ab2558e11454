package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paylode/paylode/internal/models"
)

type stubSessionChecker struct {
	revoked bool
	err     error
}

func (s *stubSessionChecker) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	return s.revoked, s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func issueFor(t *testing.T, tm *TokenManager, role models.Role) string {
	t.Helper()
	pair, err := tm.IssuePair(&models.User{ID: "user-1", Role: role}, "session-1", false)
	require.NoError(t, err)
	return pair.AccessToken
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, time.Hour)
	handler := Authenticate(tm)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_MalformedHeader(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, time.Hour)
	handler := Authenticate(tm)(okHandler())

	for _, header := range []string{"Bearer", "Basic abc", "bearer x y"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", header)
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestAuthenticate_BadToken(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, time.Hour)
	handler := Authenticate(tm)(okHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthenticate_RefreshTokenRejected(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, time.Hour)
	pair, err := tm.IssuePair(&models.User{ID: "user-1", Role: models.RoleUser}, "session-1", false)
	require.NoError(t, err)

	handler := Authenticate(tm)(okHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthenticate_InjectsClaims(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, time.Hour)

	var got *models.TokenClaims
	handler := Authenticate(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetClaims(r)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+issueFor(t, tm, models.RoleStaff))
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID())
	assert.Equal(t, models.RoleStaff, got.Role)
}

func requestWithClaims(role models.Role) *http.Request {
	req := httptest.NewRequest("GET", "/", nil)
	claims := &models.TokenClaims{Role: role, SessionID: "session-1"}
	return req.WithContext(context.WithValue(req.Context(), ClaimsContextKey, claims))
}

func TestRequireMinRole(t *testing.T) {
	tests := []struct {
		role models.Role
		min  models.Role
		want int
	}{
		{models.RoleUser, models.RoleAdmin, http.StatusForbidden},
		{models.RoleStaff, models.RoleAdmin, http.StatusForbidden},
		{models.RoleAdmin, models.RoleAdmin, http.StatusOK},
		{models.RoleSuperAdmin, models.RoleAdmin, http.StatusOK},
		{models.RoleUser, models.RoleUser, http.StatusOK},
		{models.RoleStaff, models.RoleSuperAdmin, http.StatusForbidden},
	}

	for _, tc := range tests {
		handler := RequireMinRole(tc.min)(okHandler())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithClaims(tc.role))
		assert.Equal(t, tc.want, rec.Code, "role %s against min %s", tc.role, tc.min)
	}
}

func TestRequireRole_ExactSet(t *testing.T) {
	handler := RequireRole(models.RoleStaff, models.RoleAdmin)(okHandler())

	tests := []struct {
		role models.Role
		want int
	}{
		{models.RoleUser, http.StatusForbidden},
		{models.RoleStaff, http.StatusOK},
		{models.RoleAdmin, http.StatusOK},
		// exact-set semantics: SUPERADMIN is not in the allowed set
		{models.RoleSuperAdmin, http.StatusForbidden},
	}

	for _, tc := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithClaims(tc.role))
		assert.Equal(t, tc.want, rec.Code, "role %s", tc.role)
	}
}

func TestRequireRole_NoClaims(t *testing.T) {
	handler := RequireRole(models.RoleAdmin)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireActiveSession(t *testing.T) {
	t.Run("active session passes", func(t *testing.T) {
		handler := RequireActiveSession(&stubSessionChecker{})(okHandler())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithClaims(models.RoleUser))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("revoked session rejected", func(t *testing.T) {
		handler := RequireActiveSession(&stubSessionChecker{revoked: true})(okHandler())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithClaims(models.RoleUser))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("registry failure fails closed", func(t *testing.T) {
		handler := RequireActiveSession(&stubSessionChecker{err: errors.New("down")})(okHandler())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithClaims(models.RoleUser))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
