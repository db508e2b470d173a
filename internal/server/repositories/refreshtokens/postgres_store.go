package refreshtokens

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/buddyauth/internal/dbx"
)

// PostgresStore is a Store backed by a *sql.DB. Calls made directly on it run
// outside any transaction.
type PostgresStore struct {
	*PostgresRepository
	db *sql.DB
}

// NewPostgresStore wraps db. The caller owns db and closes it.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{PostgresRepository: NewPostgresRepository(db), db: db}
}

// WithinTx runs fn in a single database transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, NewPostgresRepository(tx))
	})
}
