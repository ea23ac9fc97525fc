package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nrana15/clio/internal/dbx"
	"github.com/nrana15/clio/internal/server/migrations"
	"github.com/nrana15/clio/internal/server/repositories/otps"
	"github.com/nrana15/clio/internal/server/repositories/refreshtokens"
	"github.com/nrana15/clio/internal/server/repositories/users"

	_ "modernc.org/sqlite"
)

type SQLiteRepositoryManager struct{}

func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}

func (m *SQLiteRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Otps(db dbx.DBTX) otps.Repository {
	return otps.NewSQLiteRepository(db)
}

// migrateUp is a seam for tests.
var migrateUp = migrations.Up

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrateUp(ctx, db)
}

// OpenDatabase opens the identity database at dsn with foreign keys on and
// a busy timeout so concurrent writers wait instead of failing.
func OpenDatabase(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn+pragmaSuffix(dsn))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	return db, nil
}

func pragmaSuffix(dsn string) string {
	const pragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if strings.Contains(dsn, "?") {
		return "&" + pragmas
	}
	return "?" + pragmas
}
