// Package users declares the account repository contract and its
// PostgreSQL implementation.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/server/models"
)

// Repository abstracts persistence of user accounts.
type Repository interface {
	// Create inserts the user and fills in ID and CreatedAt. A taken email
	// yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
