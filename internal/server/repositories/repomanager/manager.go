package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/buddyauth/internal/dbx"
	"github.com/dmitrijs2005/buddyauth/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/buddyauth/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/buddyauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/buddyauth/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a *sql.DB or a *sql.Tx, so
// services can use the same code in and out of transactions.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Profiles(db dbx.DBTX) profiles.Repository
	PasswordResets(db dbx.DBTX) passwordresets.Repository
	RefreshTokens(db *sql.DB) refreshtokens.Store
}
