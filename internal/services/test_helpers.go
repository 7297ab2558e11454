package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/paylode/paylode/internal/kvstore"
	"github.com/paylode/paylode/internal/models"
	"github.com/paylode/paylode/internal/obs"
	"github.com/paylode/paylode/internal/repositories"
	pkglogger "github.com/paylode/paylode/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

func testMetrics() *obs.Metrics {
	return obs.NewMetrics(prometheus.NewRegistry())
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc              func(ctx context.Context, id string) (*models.User, error)
	GetByEmailOrUsernameFunc func(ctx context.Context, identifier string) (*models.User, error)
	ListFunc                 func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc               func(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePasswordHashFunc   func(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	MigrateHashFunc          func(ctx context.Context, id, passwordHash string) error
	UpdateRoleFunc           func(ctx context.Context, id string, role models.Role) (*models.User, error)
	UpdateStatusFunc         func(ctx context.Context, id, status string) (*models.User, error)
	UpdateTOTPFunc           func(ctx context.Context, id string, encryptedSecret *string, enabled bool) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error) {
	if m.GetByEmailOrUsernameFunc != nil {
		return m.GetByEmailOrUsernameFunc(ctx, identifier)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	if m.UpdatePasswordHashFunc != nil {
		return m.UpdatePasswordHashFunc(ctx, id, passwordHash, changedAt)
	}
	return nil
}

func (m *MockUserRepository) MigrateHash(ctx context.Context, id, passwordHash string) error {
	if m.MigrateHashFunc != nil {
		return m.MigrateHashFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockUserRepository) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	if m.UpdateRoleFunc != nil {
		return m.UpdateRoleFunc(ctx, id, role)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdateStatus(ctx context.Context, id, status string) (*models.User, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdateTOTP(ctx context.Context, id string, encryptedSecret *string, enabled bool) error {
	if m.UpdateTOTPFunc != nil {
		return m.UpdateTOTPFunc(ctx, id, encryptedSecret, enabled)
	}
	return nil
}

// MockSessionChainRepository implements SessionChainRepository for testing
type MockSessionChainRepository struct {
	RegisterFunc         func(ctx context.Context, chain *models.SessionChain) error
	RotateFunc           func(ctx context.Context, sessionID, presentedHash, newHash string) error
	GetByIDFunc          func(ctx context.Context, id string) (*models.SessionChain, error)
	RevokeFunc           func(ctx context.Context, id string) error
	RevokeAllForUserFunc func(ctx context.Context, userID string) (int64, error)
	IsRevokedFunc        func(ctx context.Context, id string) (bool, error)
	DeleteExpiredFunc    func(ctx context.Context, before time.Time) (int64, error)
}

func (m *MockSessionChainRepository) Register(ctx context.Context, chain *models.SessionChain) error {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, chain)
	}
	return nil
}

func (m *MockSessionChainRepository) Rotate(ctx context.Context, sessionID, presentedHash, newHash string) error {
	if m.RotateFunc != nil {
		return m.RotateFunc(ctx, sessionID, presentedHash, newHash)
	}
	return nil
}

func (m *MockSessionChainRepository) GetByID(ctx context.Context, id string) (*models.SessionChain, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionChainRepository) Revoke(ctx context.Context, id string) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, id)
	}
	return nil
}

func (m *MockSessionChainRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	if m.RevokeAllForUserFunc != nil {
		return m.RevokeAllForUserFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockSessionChainRepository) IsRevoked(ctx context.Context, id string) (bool, error) {
	if m.IsRevokedFunc != nil {
		return m.IsRevokedFunc(ctx, id)
	}
	return false, nil
}

func (m *MockSessionChainRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, before)
	}
	return 0, nil
}

// MockAuditLogRepository implements AuditLogRepository for testing
type MockAuditLogRepository struct {
	InsertFunc func(ctx context.Context, entry *models.AuditEntry) error
	ListFunc   func(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditEntry, error)
}

func (m *MockAuditLogRepository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	return nil
}

func (m *MockAuditLogRepository) List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditEntry, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.AuditEntry{}, nil
}

// MockStore implements kvstore.Store for testing store failures
type MockStore struct {
	GetFunc            func(ctx context.Context, key string) (kvstore.Entry, bool, error)
	CompareAndSwapFunc func(ctx context.Context, key string, expectedVersion int64, value []byte, ttl time.Duration) error
	DeleteFunc         func(ctx context.Context, key string) error
}

func (m *MockStore) Get(ctx context.Context, key string) (kvstore.Entry, bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return kvstore.Entry{}, false, nil
}

func (m *MockStore) CompareAndSwap(ctx context.Context, key string, expectedVersion int64, value []byte, ttl time.Duration) error {
	if m.CompareAndSwapFunc != nil {
		return m.CompareAndSwapFunc(ctx, key, expectedVersion, value, ttl)
	}
	return nil
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}
