package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/paylode/paylode/internal/auth"
	"github.com/paylode/paylode/internal/models"
	"github.com/paylode/paylode/internal/obs"
	pkgauth "github.com/paylode/paylode/pkg/auth"
	pkglogger "github.com/paylode/paylode/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	MigrateHash(ctx context.Context, id, passwordHash string) error
	UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error)
	UpdateStatus(ctx context.Context, id, status string) (*models.User, error)
	UpdateTOTP(ctx context.Context, id string, encryptedSecret *string, enabled bool) error
}

// RequestMeta carries per-request client attribution for audit events.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// AuthService handles credential verification and the token lifecycle
type AuthService struct {
	users       UserRepository
	sessions    *SessionService
	lockout     *LockoutService
	tm          *auth.TokenManager
	totp        *auth.TOTPManager
	timing      *auth.TimingGuard
	sessionTTL  time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	metrics     *obs.Metrics
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users UserRepository,
	sessions *SessionService,
	lockout *LockoutService,
	tm *auth.TokenManager,
	totp *auth.TOTPManager,
	timing *auth.TimingGuard,
	sessionTTL time.Duration,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	metrics *obs.Metrics,
) *AuthService {
	return &AuthService{
		users:       users,
		sessions:    sessions,
		lockout:     lockout,
		tm:          tm,
		totp:        totp,
		timing:      timing,
		sessionTTL:  sessionTTL,
		logger:      logger,
		auditLogger: auditLogger,
		metrics:     metrics,
	}
}

// UserResponse represents a user in HTTP responses
type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	FullName    string `json:"fullName"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	TOTPEnabled bool   `json:"totpEnabled"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// TokenPair is the access/refresh pair as it appears on the wire
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse represents the response from auth operations. Refresh omits
// the user; it only trades tokens.
type AuthResponse struct {
	User   *UserResponse `json:"user,omitempty"`
	Tokens TokenPair     `json:"tokens"`
}

func toUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		Username:    user.Username,
		FullName:    user.FullName,
		Role:        user.Role.String(),
		Status:      user.Status,
		TOTPEnabled: user.TOTPEnabled,
		CreatedAt:   user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   user.UpdatedAt.Format(time.RFC3339),
	}
}

// Signup registers a new identity and opens its first session.
func (s *AuthService) Signup(ctx context.Context, email, username, password, fullName string, meta RequestMeta) (*AuthResponse, error) {
	// Stored lowercase so the single-identifier login lookup, which folds
	// its input the same way, always matches.
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.ToLower(strings.TrimSpace(username))

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.users.Create(ctx, &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         models.RoleUser,
		Status:       models.UserStatusActive,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Info("signup rejected: identity already exists")
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "signup",
		UserID:    user.ID,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return s.openSession(ctx, user, false, meta)
}

// Login authenticates an identity against its stored credential. The lockout
// check runs before password verification so a locked account rejects even a
// correct password without burning hash time. All failure paths run through
// the timing guard so response time does not reveal which step rejected.
func (s *AuthService) Login(ctx context.Context, identifier, password, totpCode string, meta RequestMeta) (*AuthResponse, error) {
	start := time.Now()

	resp, err := s.login(ctx, identifier, password, totpCode, meta)
	s.timing.Protect(start, err == nil)
	return resp, err
}

func (s *AuthService) login(ctx context.Context, identifier, password, totpCode string, meta RequestMeta) (*AuthResponse, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || password == "" {
		return nil, models.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmailOrUsername(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.recordLoginFailure("", "unknown_identity", meta)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to look up user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	locked, remaining, err := s.lockout.CheckLocked(ctx, user.ID)
	if err != nil {
		// Fail closed: if lockout state is unreadable we cannot prove the
		// account is unlocked.
		return nil, err
	}
	if locked {
		s.metrics.LockoutRejections.Inc()
		s.recordLoginFailure(user.ID, "account_locked", meta)
		return nil, &models.AccountLockedError{RetryAfter: remaining}
	}

	ok, needsRehash, err := pkgauth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("failed to verify password", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !ok {
		return nil, s.failAttempt(ctx, user.ID, "bad_password", meta)
	}

	if !user.Active() {
		s.recordLoginFailure(user.ID, "account_disabled", meta)
		return nil, models.ErrAccountDisabled
	}

	totpVerified := false
	if user.TOTPEnabled {
		if totpCode == "" {
			return nil, models.ErrTOTPRequired
		}
		valid, err := s.totp.VerifyCode(*user.TOTPSecret, totpCode)
		if err != nil {
			s.logger.Error("failed to verify totp", slog.String("user_id", user.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if !valid {
			return nil, s.failAttempt(ctx, user.ID, "bad_totp", meta)
		}
		totpVerified = true
	}

	if needsRehash {
		s.migrateHash(ctx, user, password)
	}

	if err := s.lockout.RecordSuccess(ctx, user.ID); err != nil {
		// Clearing the counter is best effort; a stale count only trims the
		// budget for future failures.
		s.logger.Warn("failed to reset lockout counter", slog.String("user_id", user.ID))
	}

	s.metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login",
		UserID:    user.ID,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return s.openSession(ctx, user, totpVerified, meta)
}

// failAttempt records a failed credential check, returning a lockout error
// when this attempt crossed the threshold and credentials error otherwise.
func (s *AuthService) failAttempt(ctx context.Context, userID, reason string, meta RequestMeta) error {
	s.recordLoginFailure(userID, reason, meta)

	state, err := s.lockout.RecordFailure(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			return err
		}
		s.logger.Error("failed to record login failure", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInvalidCredentials
	}

	if locked, remaining := state.Locked(time.Now()); locked {
		s.metrics.LockoutsEngaged.Inc()
		return &models.AccountLockedError{RetryAfter: remaining}
	}
	return models.ErrInvalidCredentials
}

func (s *AuthService) recordLoginFailure(userID, reason string, meta RequestMeta) {
	s.metrics.LoginAttempts.WithLabelValues("failure").Inc()
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		UserID:        userID,
		IPAddress:     meta.IP,
		UserAgent:     meta.UserAgent,
		Success:       false,
		FailureReason: reason,
	})
}

// migrateHash transparently upgrades a verified legacy hash to the current
// scheme. Best effort: the login proceeds either way and the next login
// retries the migration.
func (s *AuthService) migrateHash(ctx context.Context, user *models.User, password string) {
	newHash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to rehash password", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	if err := s.users.MigrateHash(ctx, user.ID, newHash); err != nil {
		s.logger.Error("failed to persist migrated hash", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	s.logger.Info("password hash migrated to current scheme", slog.String("user_id", user.ID))
}

func (s *AuthService) openSession(ctx context.Context, user *models.User, totpVerified bool, meta RequestMeta) (*AuthResponse, error) {
	sessionID := uuid.New().String()

	pair, err := s.tm.IssuePair(user, sessionID, totpVerified)
	if err != nil {
		s.logger.Error("failed to issue token pair", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	err = s.sessions.Register(ctx, sessionID, user.ID, auth.HashToken(pair.RefreshToken), s.sessionTTL)
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogSessionEvent("session_opened", user.ID, sessionID)

	return &AuthResponse{
		User:   toUserResponse(user),
		Tokens: TokenPair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
	}, nil
}

// Refresh exchanges a valid refresh token for a new pair, rotating the
// session chain. Replay of an already-rotated token revokes the whole chain
// and returns models.ErrTokenReused.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*AuthResponse, error) {
	claims, err := s.tm.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrTokenInvalid
		}
		s.logger.Error("failed to load user for refresh", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.Active() {
		return nil, models.ErrAccountDisabled
	}

	// Tokens issued before the last password change are dead even if their
	// signature still checks out.
	if user.PasswordChangedAt != nil && claims.IssuedAt != nil && claims.IssuedAt.Time.Before(*user.PasswordChangedAt) {
		return nil, models.ErrTokenInvalid
	}

	// A TOTP-enabled user proved possession at login, so refreshed access
	// tokens keep the verified mark.
	pair, err := s.tm.IssuePair(user, claims.SessionID, user.TOTPEnabled)
	if err != nil {
		s.logger.Error("failed to issue token pair", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	err = s.sessions.Rotate(ctx, claims.SessionID, auth.HashToken(refreshToken), auth.HashToken(pair.RefreshToken))
	if err != nil {
		if errors.Is(err, models.ErrTokenReused) {
			s.metrics.ReuseDetections.Inc()
			s.auditLogger.LogSessionEvent("token_reuse_detected", user.ID, claims.SessionID)
		}
		return nil, err
	}

	s.metrics.Rotations.Inc()

	return &AuthResponse{
		Tokens: TokenPair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
	}, nil
}

// Logout revokes the caller's session chain. Idempotent.
func (s *AuthService) Logout(ctx context.Context, claims *models.TokenClaims) error {
	if err := s.sessions.Revoke(ctx, claims.SessionID); err != nil {
		return err
	}
	s.auditLogger.LogSessionEvent("logout", claims.UserID(), claims.SessionID)
	return nil
}

// LogoutAll revokes every live session for the caller.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	count, err := s.sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.auditLogger.LogSessionEvent("logout_all", userID, "")
	return count, nil
}

// TOTPSetupResponse carries enrollment material to the client. The secret is
// never returned; the provisioning URL and QR code are shown exactly once.
type TOTPSetupResponse struct {
	ProvisioningURL string `json:"provisioning_url"`
	QRCodePNG       []byte `json:"qr_code_png"`
}

// SetupTOTP enrolls the user, storing the encrypted secret with TOTP still
// disabled. VerifyTOTP with a valid code completes enrollment.
func (s *AuthService) SetupTOTP(ctx context.Context, userID string) (*TOTPSetupResponse, error) {
	if s.totp == nil {
		return nil, models.ErrBadRequest
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, models.ErrInternalServer
	}
	if user.TOTPEnabled {
		return nil, models.ErrConflict
	}

	enrollment, err := s.totp.Enroll(user.Email)
	if err != nil {
		s.logger.Error("totp enrollment failed", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.users.UpdateTOTP(ctx, userID, &enrollment.EncryptedSecret, false); err != nil {
		s.logger.Error("failed to store totp secret", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &TOTPSetupResponse{
		ProvisioningURL: enrollment.ProvisioningURL,
		QRCodePNG:       enrollment.QRCodePNG,
	}, nil
}

// VerifyTOTP completes enrollment by proving the client holds the secret.
func (s *AuthService) VerifyTOTP(ctx context.Context, userID, code string) error {
	if s.totp == nil {
		return models.ErrBadRequest
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.ErrInternalServer
	}
	if user.TOTPSecret == nil {
		return models.ErrBadRequest
	}

	valid, err := s.totp.VerifyCode(*user.TOTPSecret, code)
	if err != nil {
		s.logger.Error("totp verification failed", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !valid {
		return models.ErrTOTPInvalid
	}

	if !user.TOTPEnabled {
		if err := s.users.UpdateTOTP(ctx, userID, user.TOTPSecret, true); err != nil {
			s.logger.Error("failed to enable totp", slog.String("user_id", userID), slog.Any("error", err))
			return models.ErrInternalServer
		}
		s.auditLogger.LogAccountAction("totp_enabled", userID, "", nil)
	}
	return nil
}

// GetProfile returns the caller's own record for the whoami endpoint.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return toUserResponse(user), nil
}
