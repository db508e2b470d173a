package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/buddyauth/internal/common"
	"github.com/dmitrijs2005/buddyauth/internal/dbx"
	"github.com/dmitrijs2005/buddyauth/internal/server/models"
)

const profileColumns = `id, name, role, banned, avatar_url, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	p := &models.Profile{}
	var avatar sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.Role, &p.Banned, &avatar, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if avatar.Valid {
		s := avatar.String
		p.AvatarURL = &s
	}
	return p, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

func (r *PostgresRepository) Upsert(ctx context.Context, id, name string) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (id, name, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = now()
		RETURNING ` + profileColumns
	return r.queryOne(ctx, query, id, name, models.DefaultRole)
}

// Update applies the non-nil fields of upd.
func (r *PostgresRepository) Update(ctx context.Context, id string, upd models.ProfileUpdate) (*models.Profile, error) {
	query := `
		UPDATE profiles
		SET name = COALESCE($2, name), avatar_url = COALESCE($3, avatar_url), updated_at = now()
		WHERE id = $1
		RETURNING ` + profileColumns
	return r.queryOne(ctx, query, id, upd.Name, upd.AvatarURL)
}

func (r *PostgresRepository) UpdateRole(ctx context.Context, id, role string) (*models.Profile, error) {
	query := `
		UPDATE profiles
		SET role = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + profileColumns
	return r.queryOne(ctx, query, id, role)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
