// Package profiles stores the public profile attached to every account.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/buddyauth/internal/server/models"
)

// Repository abstracts persistence of profiles. Lookups of unknown ids yield
// common.ErrorNotFound.
type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	// Upsert creates the profile or, if it exists, sets its name.
	Upsert(ctx context.Context, id, name string) (*models.Profile, error)
	Update(ctx context.Context, id string, upd models.ProfileUpdate) (*models.Profile, error)
	UpdateRole(ctx context.Context, id, role string) (*models.Profile, error)
	// List returns all profiles, newest first.
	List(ctx context.Context) ([]*models.Profile, error)
}
