package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paylode/paylode/internal/models"
	"github.com/paylode/paylode/internal/repositories"
	pkglogger "github.com/paylode/paylode/pkg/logger"
)

func TestAuditService_RecordRedactsDetails(t *testing.T) {
	var captured *models.AuditEntry
	repo := &MockAuditLogRepository{
		InsertFunc: func(ctx context.Context, entry *models.AuditEntry) error {
			captured = entry
			return nil
		},
	}
	svc := NewAuditService(repo, testAuditLogger(), testLogger())

	svc.Record(context.Background(), "admin-1", models.AuditActionRoleChange, "/api/admin/users/u2/role", "10.0.0.1", "curl/8", map[string]string{
		"target_id": "u2",
		"password":  "hunter2",
	})

	require.NotNil(t, captured)
	assert.Equal(t, "admin-1", captured.ActorID)
	assert.Equal(t, models.AuditActionRoleChange, captured.Action)
	assert.Equal(t, "u2", captured.Details["target_id"])
	assert.Equal(t, pkglogger.RedactionMarker, captured.Details["password"], "sensitive keys must never reach the audit trail")
}

func TestAuditService_RecordSurvivesInsertFailure(t *testing.T) {
	repo := &MockAuditLogRepository{
		InsertFunc: func(ctx context.Context, entry *models.AuditEntry) error {
			return errors.New("disk full")
		},
	}
	svc := NewAuditService(repo, testAuditLogger(), testLogger())

	// Must not panic or propagate; the audited action already happened.
	svc.Record(context.Background(), "admin-1", models.AuditActionSuspendUser, "/api/admin/users/u2/suspend", "", "", nil)
}

func TestAuditService_List(t *testing.T) {
	repo := &MockAuditLogRepository{
		ListFunc: func(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditEntry, error) {
			assert.Equal(t, "admin-1", filter.ActorID)
			return []*models.AuditEntry{{ID: "01ARZ", ActorID: "admin-1"}}, nil
		},
	}
	svc := NewAuditService(repo, testAuditLogger(), testLogger())

	entries, err := svc.List(context.Background(), repositories.AuditFilter{ActorID: "admin-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "admin-1", entries[0].ActorID)
}
