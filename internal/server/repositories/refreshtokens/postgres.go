package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/common"
	"github.com/dmitrijs2005/buddyauth/internal/dbx"
	"github.com/dmitrijs2005/buddyauth/internal/server/models"
)

const selectColumns = `id, user_id, token_digest, token_hash, expires_at, revoked, created_at, last_used_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*models.RefreshToken, error) {
	var (
		t        models.RefreshToken
		lastUsed sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenDigest, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt, &lastUsed); err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		at := lastUsed.Time
		t.LastUsedAt = &at
	}
	return &t, nil
}

func (r *PostgresRepository) CountActive(ctx context.Context, userID string, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM refresh_tokens
		WHERE user_id = $1 AND revoked = false AND expires_at > $2
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, userID, now).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) FindOldestActive(ctx context.Context, userID string, now time.Time) (*models.RefreshToken, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND revoked = false AND expires_at > $2
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`
	t, err := scanToken(r.db.QueryRowContext(ctx, query, userID, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) FindByDigest(ctx context.Context, digest string) (*models.RefreshToken, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE token_digest = $1
	`
	t, err := scanToken(r.db.QueryRowContext(ctx, query, digest))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, t *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_digest, token_hash, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, t.ID, t.UserID, t.TokenDigest, t.TokenHash, t.ExpiresAt, t.Revoked, t.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MarkRevoked(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = true, last_used_at = $2
		WHERE id = $1 AND revoked = false
	`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) RevokeAllForOwner(ctx context.Context, userID string, at time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = true, last_used_at = $2
		WHERE user_id = $1 AND revoked = false
	`
	res, err := r.db.ExecContext(ctx, query, userID, at)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// LockOwner takes a transaction-scoped advisory lock keyed by the owner id.
func (r *PostgresRepository) LockOwner(ctx context.Context, userID string) error {
	query := `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteStale(ctx context.Context, now, revokedBefore time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1 OR (revoked = true AND last_used_at < $2)
	`
	res, err := r.db.ExecContext(ctx, query, now, revokedBefore)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
