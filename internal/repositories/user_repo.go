package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paylode/paylode/internal/database"
	"github.com/paylode/paylode/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, username, password_hash, full_name, role, status, totp_secret, totp_enabled, password_changed_at, created_at, updated_at`

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var roleStr string
	var totpSecret *string
	var passwordChangedAt *time.Time

	err := scanner.Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.FullName,
		&roleStr, &user.Status, &totpSecret, &user.TOTPEnabled,
		&passwordChangedAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	role, err := models.ParseRole(roleStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt role for user %s: %w", user.ID, err)
	}
	user.Role = role
	user.TOTPSecret = totpSecret
	user.PasswordChangedAt = passwordChangedAt

	return &user, nil
}

func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByEmailOrUsername resolves the login identifier against both unique
// columns.
func (r *UserRepository) GetByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR username = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, identifier))
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Status == "" {
		user.Status = models.UserStatusActive
	}

	query := `
		INSERT INTO users (id, email, username, password_hash, full_name, role, status, totp_secret, totp_enabled, password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash, user.FullName,
		user.Role.String(), user.Status, user.TOTPSecret, user.TOTPEnabled,
		user.PasswordChangedAt, user.CreatedAt, user.UpdatedAt,
	))
}

// UpdatePasswordHash persists a new hash, moving the password-changed
// watermark that invalidates earlier tokens. Also the persistence point for
// transparent legacy-hash migration.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	query := `UPDATE users SET password_hash = $1, password_changed_at = $2, updated_at = $3 WHERE id = $4`

	result, err := r.db.Pool.Exec(ctx, query, passwordHash, changedAt, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MigrateHash swaps a legacy password hash for a current-scheme one without
// touching password_changed_at: the password itself did not change, so
// outstanding tokens stay valid.
func (r *UserRepository) MigrateHash(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Pool.Exec(ctx, query, passwordHash, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	query := `UPDATE users SET role = $1, updated_at = $2 WHERE id = $3 RETURNING ` + userColumns
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, role.String(), time.Now(), id))
}

// UpdateStatus soft-disables or reinstates an account. There is no delete
// path; identities are never hard-deleted.
func (r *UserRepository) UpdateStatus(ctx context.Context, id, status string) (*models.User, error) {
	query := `UPDATE users SET status = $1, updated_at = $2 WHERE id = $3 RETURNING ` + userColumns
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, status, time.Now(), id))
}

func (r *UserRepository) UpdateTOTP(ctx context.Context, id string, encryptedSecret *string, enabled bool) error {
	query := `UPDATE users SET totp_secret = $1, totp_enabled = $2, updated_at = $3 WHERE id = $4`

	result, err := r.db.Pool.Exec(ctx, query, encryptedSecret, enabled, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
