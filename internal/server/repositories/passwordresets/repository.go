// Package passwordresets persists single-use password reset tokens by digest.
package passwordresets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, reset *models.PasswordReset) (*models.PasswordReset, error)
	// FindByDigest returns the reset regardless of state, or common.ErrorNotFound.
	FindByDigest(ctx context.Context, digest string) (*models.PasswordReset, error)
	// MarkUsed consumes the reset and reports whether this call did it.
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
	// DeleteStale removes expired and used resets.
	DeleteStale(ctx context.Context, now time.Time) (int64, error)
}
