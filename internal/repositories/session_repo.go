package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/paylode/paylode/internal/database"
	"github.com/paylode/paylode/internal/models"
)

// SessionChainRepository tracks refresh-token rotation chains. Each row is
// one logical session: the hash of the currently valid refresh token plus
// the hashes of every token already rotated out of it.
type SessionChainRepository struct {
	db *database.DB
}

func NewSessionChainRepository(db *database.DB) *SessionChainRepository {
	return &SessionChainRepository{db: db}
}

const sessionColumns = `id, user_id, current_token_hash, rotated_hashes, revoked, issued_at, expires_at`

func scanSessionRow(scanner rowScanner) (*models.SessionChain, error) {
	var chain models.SessionChain

	err := scanner.Scan(
		&chain.ID, &chain.UserID, &chain.CurrentTokenHash, &chain.RotatedHashes,
		&chain.Revoked, &chain.IssuedAt, &chain.ExpiresAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &chain, nil
}

// Register opens a new chain for a freshly issued refresh token.
func (r *SessionChainRepository) Register(ctx context.Context, chain *models.SessionChain) error {
	query := `
		INSERT INTO session_chains (id, user_id, current_token_hash, rotated_hashes, revoked, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if chain.RotatedHashes == nil {
		chain.RotatedHashes = []string{}
	}

	_, err := r.db.Pool.Exec(ctx, query,
		chain.ID, chain.UserID, chain.CurrentTokenHash, chain.RotatedHashes,
		chain.Revoked, chain.IssuedAt, chain.ExpiresAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// Rotate atomically advances the chain: the presented hash must still be
// current, and on success it moves into rotated_hashes while newHash becomes
// current. The guarded UPDATE makes concurrent rotations race safely; at most
// one caller wins and every loser falls through to the reuse check.
//
// Returns models.ErrTokenReused when the presented hash was already rotated
// out of the chain. The whole chain is revoked before returning, so nothing
// descended from the stolen token remains usable.
func (r *SessionChainRepository) Rotate(ctx context.Context, sessionID, presentedHash, newHash string) error {
	now := time.Now()

	advance := `
		UPDATE session_chains
		SET current_token_hash = $1,
		    rotated_hashes = array_append(rotated_hashes, current_token_hash)
		WHERE id = $2
		  AND current_token_hash = $3
		  AND NOT revoked
		  AND expires_at > $4`

	result, err := r.db.Pool.Exec(ctx, advance, newHash, sessionID, presentedHash, now)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	chain, err := r.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrTokenInvalid
		}
		return err
	}

	if chain.WasRotated(presentedHash) {
		if err := r.Revoke(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to revoke chain after reuse: %w", err)
		}
		return models.ErrTokenReused
	}

	// Revoked, expired, or a hash that never belonged to this chain.
	return models.ErrTokenInvalid
}

func (r *SessionChainRepository) GetByID(ctx context.Context, id string) (*models.SessionChain, error) {
	query := `SELECT ` + sessionColumns + ` FROM session_chains WHERE id = $1`
	return scanSessionRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *SessionChainRepository) Revoke(ctx context.Context, id string) error {
	query := `UPDATE session_chains SET revoked = true WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RevokeAllForUser kills every live chain for the user. Used on logout-all,
// suspension, and password change.
func (r *SessionChainRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE session_chains SET revoked = true WHERE user_id = $1 AND NOT revoked`

	result, err := r.db.Pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// IsRevoked reports whether the chain can no longer mint tokens. A missing
// chain counts as revoked.
func (r *SessionChainRepository) IsRevoked(ctx context.Context, id string) (bool, error) {
	query := `SELECT revoked, expires_at FROM session_chains WHERE id = $1`

	var revoked bool
	var expiresAt time.Time
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(&revoked, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return true, database.MapPostgresError(err)
	}

	return revoked || time.Now().After(expiresAt), nil
}

// DeleteExpired removes chains past their expiry. Called by the background
// cleanup worker; revocation state for expired chains no longer matters
// because the tokens themselves have lapsed.
func (r *SessionChainRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM session_chains WHERE expires_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, before)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// CountActiveForUser is used by the admin user detail view.
func (r *SessionChainRepository) CountActiveForUser(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM session_chains WHERE user_id = $1 AND NOT revoked AND expires_at > $2`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, userID, time.Now()).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}
