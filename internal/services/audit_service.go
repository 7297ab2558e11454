package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/paylode/paylode/internal/models"
	"github.com/paylode/paylode/internal/repositories"
	pkglogger "github.com/paylode/paylode/pkg/logger"
)

// AuditLogRepository defines the interface for audit log persistence
type AuditLogRepository interface {
	Insert(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditEntry, error)
}

// AuditService records privileged and security-relevant actions. Every entry
// passes through redaction before it is persisted or logged; secrets must
// never reach the audit trail even when a caller puts them in Details.
type AuditService struct {
	repo        AuditLogRepository
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(repo AuditLogRepository, auditLogger *pkglogger.AuditLogger, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:        repo,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Record persists an audit entry and mirrors it to the structured audit log.
// A persistence failure is logged but not returned; audit writes must never
// fail the action they describe.
func (s *AuditService) Record(ctx context.Context, actorID, action, resourcePath, ip, userAgent string, details map[string]string) {
	entry := &models.AuditEntry{
		ActorID:      actorID,
		Action:       action,
		ResourcePath: resourcePath,
		IPAddress:    ip,
		UserAgent:    userAgent,
		Details:      pkglogger.RedactDetails(details),
		CreatedAt:    time.Now(),
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.Error("failed to persist audit entry",
			slog.String("action", action),
			slog.String("actor_id", actorID),
			slog.Any("error", err))
	}

	s.auditLogger.LogAccountAction(action, actorID, ip, entry.Details)
}

// List returns audit entries for the admin trail view, newest first.
func (s *AuditService) List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditEntry, error) {
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return entries, nil
}
