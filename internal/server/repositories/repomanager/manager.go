// Package repomanager hands out repositories bound to either the database
// or a transaction, and owns the schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/nrana15/clio/internal/dbx"
	"github.com/nrana15/clio/internal/server/repositories/otps"
	"github.com/nrana15/clio/internal/server/repositories/refreshtokens"
	"github.com/nrana15/clio/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Otps(db dbx.DBTX) otps.Repository
}
