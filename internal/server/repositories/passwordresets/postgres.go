package passwordresets

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, reset *models.PasswordReset) (*models.PasswordReset, error) {
	query := `
		INSERT INTO password_resets (user_id, token_digest, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, reset.UserID, reset.TokenDigest, reset.ExpiresAt).
		Scan(&reset.ID, &reset.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return reset, nil
}

func (r *PostgresRepository) FindByDigest(ctx context.Context, digest string) (*models.PasswordReset, error) {
	query := `
		SELECT id, user_id, token_digest, expires_at, used_at, created_at
		FROM password_resets
		WHERE token_digest = $1
	`
	reset := &models.PasswordReset{}
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, digest).
		Scan(&reset.ID, &reset.UserID, &reset.TokenDigest, &reset.ExpiresAt, &usedAt, &reset.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if usedAt.Valid {
		t := usedAt.Time
		reset.UsedAt = &t
	}
	return reset, nil
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE password_resets
		SET used_at = $2
		WHERE id = $1 AND used_at IS NULL
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

func (r *PostgresRepository) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM password_resets
		WHERE expires_at < $1 OR used_at IS NOT NULL
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
