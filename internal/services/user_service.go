package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/paylode/paylode/internal/models"
)

// UserService handles administrative user operations. Every mutation is
// written to the audit trail with the acting administrator attached.
type UserService struct {
	users    UserRepository
	sessions *SessionService
	audit    *AuditService
	logger   *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(users UserRepository, sessions *SessionService, audit *AuditService, logger *slog.Logger) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		audit:    audit,
		logger:   logger,
	}
}

func (s *UserService) GetUser(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return toUserResponse(user), nil
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*UserResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	responses := make([]*UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, toUserResponse(user))
	}
	return responses, nil
}

// ChangeRole reassigns a user's role. The actor cannot grant a role above
// their own, cannot touch a target who outranks them, and cannot change
// their own role.
func (s *UserService) ChangeRole(ctx context.Context, actor *models.User, targetID string, newRole models.Role, meta RequestMeta) (*UserResponse, error) {
	if !newRole.Valid() {
		return nil, models.ErrBadRequest
	}
	if actor.ID == targetID {
		return nil, models.ErrForbidden
	}
	if newRole.Ordinal() > actor.Role.Ordinal() {
		return nil, models.ErrInsufficientRole
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", targetID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if target.Role.Ordinal() > actor.Role.Ordinal() {
		return nil, models.ErrInsufficientRole
	}

	oldRole := target.Role
	updated, err := s.users.UpdateRole(ctx, targetID, newRole)
	if err != nil {
		s.logger.Error("failed to update role", slog.String("user_id", targetID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// A demoted or promoted user re-authenticates to pick up the new role;
	// tokens minted under the old role must not outlive the change.
	if _, err := s.sessions.RevokeAllForUser(ctx, targetID); err != nil {
		s.logger.Error("failed to revoke sessions after role change", slog.String("user_id", targetID), slog.Any("error", err))
	}

	s.audit.Record(ctx, actor.ID, models.AuditActionRoleChange, "/api/admin/users/"+targetID+"/role", meta.IP, meta.UserAgent, map[string]string{
		"target_id": targetID,
		"old_role":  oldRole.String(),
		"new_role":  newRole.String(),
	})

	return toUserResponse(updated), nil
}

// Suspend disables an account and revokes every live session it holds.
func (s *UserService) Suspend(ctx context.Context, actor *models.User, targetID string, meta RequestMeta) (*UserResponse, error) {
	if actor.ID == targetID {
		return nil, models.ErrForbidden
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrInternalServer
	}
	if target.Role.Ordinal() > actor.Role.Ordinal() {
		return nil, models.ErrInsufficientRole
	}

	updated, err := s.users.UpdateStatus(ctx, targetID, models.UserStatusDisabled)
	if err != nil {
		s.logger.Error("failed to suspend user", slog.String("user_id", targetID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	revoked, err := s.sessions.RevokeAllForUser(ctx, targetID)
	if err != nil {
		// The account is already disabled, so live sessions die at the next
		// session check; log and keep going.
		s.logger.Error("failed to revoke sessions on suspend", slog.String("user_id", targetID), slog.Any("error", err))
	}

	s.audit.Record(ctx, actor.ID, models.AuditActionSuspendUser, "/api/admin/users/"+targetID+"/suspend", meta.IP, meta.UserAgent, map[string]string{
		"target_id":        targetID,
		"sessions_revoked": strconv.FormatInt(revoked, 10),
	})

	return toUserResponse(updated), nil
}

// Reinstate re-enables a suspended account. Sessions are not restored; the
// user logs in again.
func (s *UserService) Reinstate(ctx context.Context, actor *models.User, targetID string, meta RequestMeta) (*UserResponse, error) {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrInternalServer
	}
	if target.Role.Ordinal() > actor.Role.Ordinal() {
		return nil, models.ErrInsufficientRole
	}

	updated, err := s.users.UpdateStatus(ctx, targetID, models.UserStatusActive)
	if err != nil {
		s.logger.Error("failed to reinstate user", slog.String("user_id", targetID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Record(ctx, actor.ID, models.AuditActionReinstateUser, "/api/admin/users/"+targetID+"/reinstate", meta.IP, meta.UserAgent, map[string]string{
		"target_id": targetID,
	})

	return toUserResponse(updated), nil
}

// RevokeSessions force-logs-out a user without touching account status.
func (s *UserService) RevokeSessions(ctx context.Context, actor *models.User, targetID string, meta RequestMeta) (int64, error) {
	count, err := s.sessions.RevokeAllForUser(ctx, targetID)
	if err != nil {
		return 0, err
	}

	s.audit.Record(ctx, actor.ID, models.AuditActionRevokeSessions, "/api/admin/users/"+targetID+"/sessions", meta.IP, meta.UserAgent, map[string]string{
		"target_id":        targetID,
		"sessions_revoked": strconv.FormatInt(count, 10),
	})

	return count, nil
}
