package handlers

import (
	"context"
	"net/http"

	"github.com/paylode/paylode/internal/auth"
	"github.com/paylode/paylode/internal/models"
	"github.com/paylode/paylode/internal/repositories"
	"github.com/paylode/paylode/internal/services"
)

// withClaims injects verified token claims the way the auth middleware would.
func withClaims(r *http.Request, claims *models.TokenClaims) *http.Request {
	ctx := context.WithValue(r.Context(), auth.ClaimsContextKey, claims)
	return r.WithContext(ctx)
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	SignupFunc     func(ctx context.Context, email, username, password, fullName string, meta services.RequestMeta) (*services.AuthResponse, error)
	LoginFunc      func(ctx context.Context, identifier, password, totpCode string, meta services.RequestMeta) (*services.AuthResponse, error)
	RefreshFunc    func(ctx context.Context, refreshToken string, meta services.RequestMeta) (*services.AuthResponse, error)
	LogoutFunc     func(ctx context.Context, claims *models.TokenClaims) error
	LogoutAllFunc  func(ctx context.Context, userID string) (int64, error)
	GetProfileFunc func(ctx context.Context, userID string) (*services.UserResponse, error)
	SetupTOTPFunc  func(ctx context.Context, userID string) (*services.TOTPSetupResponse, error)
	VerifyTOTPFunc func(ctx context.Context, userID, code string) error
}

func (m *MockAuthService) Signup(ctx context.Context, email, username, password, fullName string, meta services.RequestMeta) (*services.AuthResponse, error) {
	if m.SignupFunc != nil {
		return m.SignupFunc(ctx, email, username, password, fullName, meta)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) Login(ctx context.Context, identifier, password, totpCode string, meta services.RequestMeta) (*services.AuthResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, identifier, password, totpCode, meta)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string, meta services.RequestMeta) (*services.AuthResponse, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken, meta)
	}
	return nil, models.ErrTokenInvalid
}

func (m *MockAuthService) Logout(ctx context.Context, claims *models.TokenClaims) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, claims)
	}
	return nil
}

func (m *MockAuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	if m.LogoutAllFunc != nil {
		return m.LogoutAllFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockAuthService) GetProfile(ctx context.Context, userID string) (*services.UserResponse, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockAuthService) SetupTOTP(ctx context.Context, userID string) (*services.TOTPSetupResponse, error) {
	if m.SetupTOTPFunc != nil {
		return m.SetupTOTPFunc(ctx, userID)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) VerifyTOTP(ctx context.Context, userID, code string) error {
	if m.VerifyTOTPFunc != nil {
		return m.VerifyTOTPFunc(ctx, userID, code)
	}
	return models.ErrTOTPInvalid
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	GetUserFunc        func(ctx context.Context, id string) (*services.UserResponse, error)
	ListUsersFunc      func(ctx context.Context, limit, offset int) ([]*services.UserResponse, error)
	ChangeRoleFunc     func(ctx context.Context, actor *models.User, targetID string, newRole models.Role, meta services.RequestMeta) (*services.UserResponse, error)
	SuspendFunc        func(ctx context.Context, actor *models.User, targetID string, meta services.RequestMeta) (*services.UserResponse, error)
	ReinstateFunc      func(ctx context.Context, actor *models.User, targetID string, meta services.RequestMeta) (*services.UserResponse, error)
	RevokeSessionsFunc func(ctx context.Context, actor *models.User, targetID string, meta services.RequestMeta) (int64, error)
}

func (m *MockUserService) GetUser(ctx context.Context, id string) (*services.UserResponse, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) ListUsers(ctx context.Context, limit, offset int) ([]*services.UserResponse, error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx, limit, offset)
	}
	return []*services.UserResponse{}, nil
}

func (m *MockUserService) ChangeRole(ctx context.Context, actor *models.User, targetID string, newRole models.Role, meta services.RequestMeta) (*services.UserResponse, error) {
	if m.ChangeRoleFunc != nil {
		return m.ChangeRoleFunc(ctx, actor, targetID, newRole, meta)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserService) Suspend(ctx context.Context, actor *models.User, targetID string, meta services.RequestMeta) (*services.UserResponse, error) {
	if m.SuspendFunc != nil {
		return m.SuspendFunc(ctx, actor, targetID, meta)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserService) Reinstate(ctx context.Context, actor *models.User, targetID string, meta services.RequestMeta) (*services.UserResponse, error) {
	if m.ReinstateFunc != nil {
		return m.ReinstateFunc(ctx, actor, targetID, meta)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserService) RevokeSessions(ctx context.Context, actor *models.User, targetID string, meta services.RequestMeta) (int64, error) {
	if m.RevokeSessionsFunc != nil {
		return m.RevokeSessionsFunc(ctx, actor, targetID, meta)
	}
	return 0, nil
}

// MockAuditService implements AuditServiceInterface for testing
type MockAuditService struct {
	ListFunc func(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditEntry, error)
}

func (m *MockAuditService) List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditEntry, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.AuditEntry{}, nil
}
