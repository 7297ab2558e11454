package services

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/paylode/paylode/internal/auth"
	"github.com/paylode/paylode/internal/kvstore"
	"github.com/paylode/paylode/internal/models"
	pkgauth "github.com/paylode/paylode/pkg/auth"
)

const testJWTSecret = "unit-test-secret-key-not-for-prod"

type authFixture struct {
	svc      *AuthService
	users    *MockUserRepository
	sessions *MockSessionChainRepository
	totp     *auth.TOTPManager
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	users := &MockUserRepository{}
	sessions := &MockSessionChainRepository{}

	totpMgr, err := auth.NewTOTPManager([]byte("0123456789abcdef0123456789abcdef"), "Paylode Test")
	require.NoError(t, err)

	tm := auth.NewTokenManager(testJWTSecret, 15*time.Minute, 7*24*time.Hour)
	lockout := NewLockoutService(kvstore.NewMemoryStore(), 5, 15*time.Minute, 24*time.Hour, testLogger())
	sessionSvc := NewSessionService(sessions, testLogger())

	svc := NewAuthService(users, sessionSvc, lockout, tm, totpMgr, nil,
		7*24*time.Hour, testLogger(), testAuditLogger(), testMetrics())

	return &authFixture{svc: svc, users: users, sessions: sessions, totp: totpMgr}
}

// totpSecretFromURL recovers the shared secret the way an authenticator app
// would, from the otpauth provisioning URL.
func totpSecretFromURL(t *testing.T, provisioningURL string) string {
	t.Helper()
	key, err := otp.NewKeyFromURL(provisioningURL)
	require.NoError(t, err)
	return key.Secret()
}

func testUser(t *testing.T, password string) *models.User {
	t.Helper()

	hash, err := pkgauth.HashPassword(password)
	require.NoError(t, err)

	now := time.Now()
	return &models.User{
		ID:           "user-1",
		Email:        "ada@example.com",
		Username:     "ada",
		PasswordHash: hash,
		FullName:     "Ada Lovelace",
		Role:         models.RoleUser,
		Status:       models.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestAuthService_LoginSuccess(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t, "Str0ng!Passw0rd")

	f.users.GetByEmailOrUsernameFunc = func(ctx context.Context, identifier string) (*models.User, error) {
		assert.Equal(t, "ada@example.com", identifier)
		return user, nil
	}

	var registered *models.SessionChain
	f.sessions.RegisterFunc = func(ctx context.Context, chain *models.SessionChain) error {
		registered = chain
		return nil
	}

	resp, err := f.svc.Login(ctx, "Ada@Example.com", "Str0ng!Passw0rd", "", RequestMeta{IP: "10.0.0.1"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Tokens.AccessToken)
	assert.NotEmpty(t, resp.Tokens.RefreshToken)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Equal(t, "USER", resp.User.Role)

	require.NotNil(t, registered, "login must register a session chain")
	assert.Equal(t, "user-1", registered.UserID)
	assert.Equal(t, auth.HashToken(resp.Tokens.RefreshToken), registered.CurrentTokenHash)
}

func TestAuthService_LoginUnknownIdentity(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Login(context.Background(), "nobody@example.com", "whatever", "", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	user := testUser(t, "Str0ng!Passw0rd")
	f.users.GetByEmailOrUsernameFunc = func(ctx context.Context, identifier string) (*models.User, error) {
		return user, nil
	}

	_, err := f.svc.Login(context.Background(), "ada", "wrong-password", "", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestAuthService_LockoutEngagesAndRejects(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t, "Str0ng!Passw0rd")
	f.users.GetByEmailOrUsernameFunc = func(ctx context.Context, identifier string) (*models.User, error) {
		return user, nil
	}

	for i := 0; i < 4; i++ {
		_, err := f.svc.Login(ctx, "ada", "wrong-password", "", RequestMeta{})
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	// Fifth failure crosses the threshold.
	_, err := f.svc.Login(ctx, "ada", "wrong-password", "", RequestMeta{})
	require.ErrorIs(t, err, models.ErrAccountLocked)

	var lockedErr *models.AccountLockedError
	require.ErrorAs(t, err, &lockedErr)
	assert.Greater(t, lockedErr.RetryAfter, time.Duration(0))

	// Even the correct password is rejected while locked.
	_, err = f.svc.Login(ctx, "ada", "Str0ng!Passw0rd", "", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrAccountLocked)
}

func TestAuthService_LoginDisabledAccount(t *testing.T) {
	f := newAuthFixture(t)
	user := testUser(t, "Str0ng!Passw0rd")
	user.Status = models.UserStatusDisabled
	f.users.GetByEmailOrUsernameFunc = func(ctx context.Context, identifier string) (*models.User, error) {
		return user, nil
	}

	_, err := f.svc.Login(context.Background(), "ada", "Str0ng!Passw0rd", "", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrAccountDisabled)
}

func TestAuthService_LoginMigratesLegacyHash(t *testing.T) {
	f := newAuthFixture(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("Str0ng!Passw0rd"), bcrypt.MinCost)
	require.NoError(t, err)

	user := testUser(t, "placeholder")
	user.PasswordHash = string(legacy)
	f.users.GetByEmailOrUsernameFunc = func(ctx context.Context, identifier string) (*models.User, error) {
		return user, nil
	}

	var migratedHash string
	f.users.MigrateHashFunc = func(ctx context.Context, id, passwordHash string) error {
		migratedHash = passwordHash
		return nil
	}

	_, err = f.svc.Login(context.Background(), "ada", "Str0ng!Passw0rd", "", RequestMeta{})
	require.NoError(t, err)

	require.NotEmpty(t, migratedHash, "legacy hash must migrate on successful login")
	ok, needsRehash, err := pkgauth.VerifyPassword("Str0ng!Passw0rd", migratedHash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, needsRehash, "migrated hash must use the current scheme")
}

func TestAuthService_LoginTOTP(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	enrollment, err := f.totp.Enroll("ada@example.com")
	require.NoError(t, err)

	user := testUser(t, "Str0ng!Passw0rd")
	user.TOTPEnabled = true
	user.TOTPSecret = &enrollment.EncryptedSecret
	f.users.GetByEmailOrUsernameFunc = func(ctx context.Context, identifier string) (*models.User, error) {
		return user, nil
	}

	_, err = f.svc.Login(ctx, "ada", "Str0ng!Passw0rd", "", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrTOTPRequired)

	_, err = f.svc.Login(ctx, "ada", "Str0ng!Passw0rd", "000000", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	code, err := totp.GenerateCode(totpSecretFromURL(t, enrollment.ProvisioningURL), time.Now())
	require.NoError(t, err)

	resp, err := f.svc.Login(ctx, "ada", "Str0ng!Passw0rd", code, RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
}

func TestAuthService_SignupConflict(t *testing.T) {
	f := newAuthFixture(t)
	f.users.CreateFunc = func(ctx context.Context, user *models.User) (*models.User, error) {
		return nil, models.ErrConflict
	}

	_, err := f.svc.Signup(context.Background(), "ada@example.com", "ada", "Str0ng!Passw0rd", "Ada", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAuthService_SignupWeakPassword(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Signup(context.Background(), "ada@example.com", "ada", "short", "Ada", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestAuthService_SignupStoresArgon2Hash(t *testing.T) {
	f := newAuthFixture(t)

	var created *models.User
	f.users.CreateFunc = func(ctx context.Context, user *models.User) (*models.User, error) {
		created = user
		user.ID = "user-1"
		return user, nil
	}

	resp, err := f.svc.Signup(context.Background(), "Ada@Example.com", "ada", "Str0ng!Passw0rd", "Ada", RequestMeta{})
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, "ada@example.com", created.Email, "email must be normalized")
	assert.Equal(t, models.RoleUser, created.Role)
	assert.NotEqual(t, "Str0ng!Passw0rd", created.PasswordHash)

	ok, needsRehash, err := pkgauth.VerifyPassword("Str0ng!Passw0rd", created.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, needsRehash)

	assert.NotEmpty(t, resp.Tokens.AccessToken)
	assert.NotEmpty(t, resp.Tokens.RefreshToken)
}

// A mixed-case username must round-trip: login folds the identifier to
// lowercase, so signup has to store it folded the same way.
func TestAuthService_SignupNormalizesUsernameForLogin(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	var created *models.User
	f.users.CreateFunc = func(ctx context.Context, user *models.User) (*models.User, error) {
		created = user
		user.ID = "user-1"
		return user, nil
	}
	f.sessions.RegisterFunc = func(ctx context.Context, chain *models.SessionChain) error {
		return nil
	}

	_, err := f.svc.Signup(ctx, "alice@example.com", "Alice", "Str0ng!Passw0rd", "Alice", RequestMeta{})
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, "alice", created.Username, "username must be stored folded")

	// The exact-match lookup sees the folded identifier and finds the user
	f.users.GetByEmailOrUsernameFunc = func(ctx context.Context, identifier string) (*models.User, error) {
		if identifier != created.Username {
			return nil, models.ErrNotFound
		}
		return created, nil
	}

	resp, err := f.svc.Login(ctx, "Alice", "Str0ng!Passw0rd", "", RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
}

func TestAuthService_RefreshRotates(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t, "Str0ng!Passw0rd")
	f.users.GetByEmailOrUsernameFunc = func(ctx context.Context, identifier string) (*models.User, error) {
		return user, nil
	}
	f.users.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}

	login, err := f.svc.Login(ctx, "ada", "Str0ng!Passw0rd", "", RequestMeta{})
	require.NoError(t, err)

	var rotatedFrom, rotatedTo string
	f.sessions.RotateFunc = func(ctx context.Context, sessionID, presentedHash, newHash string) error {
		rotatedFrom, rotatedTo = presentedHash, newHash
		return nil
	}

	refreshed, err := f.svc.Refresh(ctx, login.Tokens.RefreshToken, RequestMeta{})
	require.NoError(t, err)

	assert.NotEqual(t, login.Tokens.RefreshToken, refreshed.Tokens.RefreshToken)
	assert.Equal(t, auth.HashToken(login.Tokens.RefreshToken), rotatedFrom)
	assert.Equal(t, auth.HashToken(refreshed.Tokens.RefreshToken), rotatedTo)
}

func TestAuthService_RefreshReuseDetected(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t, "Str0ng!Passw0rd")
	f.users.GetByEmailOrUsernameFunc = func(ctx context.Context, identifier string) (*models.User, error) {
		return user, nil
	}
	f.users.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}

	login, err := f.svc.Login(ctx, "ada", "Str0ng!Passw0rd", "", RequestMeta{})
	require.NoError(t, err)

	f.sessions.RotateFunc = func(ctx context.Context, sessionID, presentedHash, newHash string) error {
		return models.ErrTokenReused
	}

	_, err = f.svc.Refresh(ctx, login.Tokens.RefreshToken, RequestMeta{})
	assert.ErrorIs(t, err, models.ErrTokenReused)
}

func TestAuthService_RefreshRejectsGarbage(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Refresh(context.Background(), "not-a-token", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestAuthService_RefreshAfterPasswordChange(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testUser(t, "Str0ng!Passw0rd")
	f.users.GetByEmailOrUsernameFunc = func(ctx context.Context, identifier string) (*models.User, error) {
		return user, nil
	}
	f.users.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}

	login, err := f.svc.Login(ctx, "ada", "Str0ng!Passw0rd", "", RequestMeta{})
	require.NoError(t, err)

	changed := time.Now().Add(time.Minute)
	user.PasswordChangedAt = &changed

	_, err = f.svc.Refresh(ctx, login.Tokens.RefreshToken, RequestMeta{})
	assert.ErrorIs(t, err, models.ErrTokenInvalid, "tokens issued before a password change are dead")
}

func TestAuthService_LogoutRevokesChain(t *testing.T) {
	f := newAuthFixture(t)

	var revoked string
	f.sessions.RevokeFunc = func(ctx context.Context, id string) error {
		revoked = id
		return nil
	}

	claims := &models.TokenClaims{SessionID: "sess-1"}
	require.NoError(t, f.svc.Logout(context.Background(), claims))
	assert.Equal(t, "sess-1", revoked)
}

func TestAuthService_VerifyTOTPEnables(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	enrollment, err := f.totp.Enroll("ada@example.com")
	require.NoError(t, err)

	user := testUser(t, "Str0ng!Passw0rd")
	user.TOTPSecret = &enrollment.EncryptedSecret
	f.users.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}

	var enabled bool
	f.users.UpdateTOTPFunc = func(ctx context.Context, id string, encryptedSecret *string, e bool) error {
		enabled = e
		return nil
	}

	code, err := totp.GenerateCode(totpSecretFromURL(t, enrollment.ProvisioningURL), time.Now())
	require.NoError(t, err)

	require.NoError(t, f.svc.VerifyTOTP(ctx, "user-1", code))
	assert.True(t, enabled)

	err = f.svc.VerifyTOTP(ctx, "user-1", "000000")
	assert.ErrorIs(t, err, models.ErrTOTPInvalid)
}
