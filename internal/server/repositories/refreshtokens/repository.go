// Package refreshtokens is the credential store for refresh-token records:
// the repository contract, its PostgreSQL implementation and an in-memory
// implementation with the same transactional semantics.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/server/models"
)

// Repository is the set of record operations the lifecycle manager needs.
//
// "Active" always means revoked = false and expires_at > now.
type Repository interface {
	// CountActive returns the number of active records owned by userID.
	CountActive(ctx context.Context, userID string, now time.Time) (int, error)
	// FindOldestActive returns the active record with the smallest
	// (created_at, id), or common.ErrorNotFound.
	FindOldestActive(ctx context.Context, userID string, now time.Time) (*models.RefreshToken, error)
	// FindByDigest returns the record with the given digest regardless of its
	// state, or common.ErrorNotFound.
	FindByDigest(ctx context.Context, digest string) (*models.RefreshToken, error)
	// Insert stores a new record. A duplicate digest yields common.ErrorAlreadyExists.
	Insert(ctx context.Context, token *models.RefreshToken) error
	// MarkRevoked revokes the record if it is not revoked yet and reports
	// whether this call did it.
	MarkRevoked(ctx context.Context, id string, at time.Time) (bool, error)
	// RevokeAllForOwner revokes every unrevoked record of userID and returns
	// how many were changed.
	RevokeAllForOwner(ctx context.Context, userID string, at time.Time) (int64, error)
	// LockOwner serialises transactions for the same owner until the
	// surrounding transaction ends. Outside a transaction it is a no-op.
	LockOwner(ctx context.Context, userID string) error
	// DeleteStale removes records expired before now and revoked records last
	// used before revokedBefore.
	DeleteStale(ctx context.Context, now, revokedBefore time.Time) (int64, error)
}

// Store is a Repository that can also run a group of operations atomically.
// Inside fn only the supplied repo may be used; if fn returns an error none of
// its writes become visible.
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
