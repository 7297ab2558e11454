package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/paylode/paylode/internal/models"
)

// SessionChainRepository defines the interface for session chain persistence
type SessionChainRepository interface {
	Register(ctx context.Context, chain *models.SessionChain) error
	Rotate(ctx context.Context, sessionID, presentedHash, newHash string) error
	GetByID(ctx context.Context, id string) (*models.SessionChain, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	IsRevoked(ctx context.Context, id string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SessionService is the registry of live refresh chains. It owns which
// sessions can still mint tokens; token cryptography lives in the auth
// package.
type SessionService struct {
	repo   SessionChainRepository
	logger *slog.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(repo SessionChainRepository, logger *slog.Logger) *SessionService {
	return &SessionService{
		repo:   repo,
		logger: logger,
	}
}

// Register opens a chain for a freshly issued refresh token hash.
func (s *SessionService) Register(ctx context.Context, sessionID, userID, tokenHash string, ttl time.Duration) error {
	now := time.Now()
	chain := &models.SessionChain{
		ID:               sessionID,
		UserID:           userID,
		CurrentTokenHash: tokenHash,
		RotatedHashes:    []string{},
		IssuedAt:         now,
		ExpiresAt:        now.Add(ttl),
	}

	if err := s.repo.Register(ctx, chain); err != nil {
		s.logger.Error("failed to register session chain",
			slog.String("session_id", sessionID),
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// Rotate advances the chain from presentedHash to newHash. Passes
// models.ErrTokenReused and models.ErrTokenInvalid through untouched so the
// caller can distinguish replay from garbage.
func (s *SessionService) Rotate(ctx context.Context, sessionID, presentedHash, newHash string) error {
	err := s.repo.Rotate(ctx, sessionID, presentedHash, newHash)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, models.ErrTokenReused):
		s.logger.Warn("refresh token reuse detected, chain revoked",
			slog.String("session_id", sessionID))
		return err
	case errors.Is(err, models.ErrTokenInvalid):
		return err
	case errors.Is(err, models.ErrStoreUnavailable):
		return err
	default:
		s.logger.Error("session rotation failed", slog.String("session_id", sessionID), slog.Any("error", err))
		return models.ErrInternalServer
	}
}

// Revoke ends a single session. Revoking an unknown session is not an error
// for the caller; logout is idempotent.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	err := s.repo.Revoke(ctx, sessionID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to revoke session", slog.String("session_id", sessionID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// RevokeAllForUser ends every live session for the user and returns how many
// were revoked.
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.RevokeAllForUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to revoke user sessions", slog.String("user_id", userID), slog.Any("error", err))
		return 0, models.ErrInternalServer
	}
	if count > 0 {
		s.logger.Info("revoked all sessions for user",
			slog.String("user_id", userID),
			slog.Int64("count", count))
	}
	return count, nil
}

// IsRevoked implements auth.SessionChecker for the middleware. Errors fail
// closed at the call site.
func (s *SessionService) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	return s.repo.IsRevoked(ctx, sessionID)
}

// CleanupExpired removes lapsed chains. Called by the background worker.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, time.Now())
}
