package repositories

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/paylode/paylode/internal/database"
	"github.com/paylode/paylode/internal/models"
)

// AuditLogRepository is append-only. Entries are keyed by ULID so the primary
// key index doubles as a time-ordered cursor.
type AuditLogRepository struct {
	db *database.DB
}

func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

const auditColumns = `id, actor_id, action, resource_path, ip_address, user_agent, details, created_at`

func (r *AuditLogRepository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO audit_log (id, actor_id, action, resource_path, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Pool.Exec(ctx, query,
		entry.ID, entry.ActorID, entry.Action, entry.ResourcePath,
		entry.IPAddress, entry.UserAgent, entry.Details, entry.CreatedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// AuditFilter narrows a List query. Zero values mean no constraint.
type AuditFilter struct {
	ActorID string
	Action  string
	Since   time.Time
	Limit   int
	Offset  int
}

func (r *AuditLogRepository) List(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log WHERE 1=1`
	args := []interface{}{}
	argN := 1

	if filter.ActorID != "" {
		query += fmt.Sprintf(" AND actor_id = $%d", argN)
		args = append(args, filter.ActorID)
		argN++
	}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argN)
		args = append(args, filter.Action)
		argN++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argN)
		args = append(args, filter.Since)
		argN++
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argN, argN+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}

	return scanAuditRows(rows)
}

func scanAuditRows(rows pgx.Rows) ([]*models.AuditEntry, error) {
	defer rows.Close()

	entries := make([]*models.AuditEntry, 0)

	for rows.Next() {
		var entry models.AuditEntry
		err := rows.Scan(
			&entry.ID, &entry.ActorID, &entry.Action, &entry.ResourcePath,
			&entry.IPAddress, &entry.UserAgent, &entry.Details, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}
