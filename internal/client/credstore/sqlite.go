package credstore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/nrana15/clio/internal/client/migrations"
	"github.com/nrana15/clio/internal/client/repositories/credentials"
	"github.com/nrana15/clio/internal/cryptox"
	"github.com/nrana15/clio/internal/dbx"
	"github.com/nrana15/clio/internal/filex"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const (
	DatabaseFile = "clio.db"
	KeyFile      = "device.key"
)

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the SQLite database at dsn and migrates it.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// SQLiteBackend stores blobs in the credentials table.
type SQLiteBackend struct {
	*credentials.SQLiteRepository
	db *sql.DB
}

var _ Backend = (*SQLiteBackend)(nil)

func NewSQLiteBackend(db *sql.DB) *SQLiteBackend {
	return &SQLiteBackend{SQLiteRepository: credentials.NewSQLiteRepository(db), db: db}
}

func (b *SQLiteBackend) Update(ctx context.Context, fn func(repo credentials.Repository) error) error {
	return dbx.WithTx(ctx, b.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(credentials.NewSQLiteRepository(tx))
	})
}

// Encrypted is the on-disk store: an AES-GCM sealed Vault over SQLite.
type Encrypted struct {
	*Vault
	db *sql.DB
}

// OpenEncrypted opens (or creates) the database and key file under dir.
func OpenEncrypted(ctx context.Context, dir string) (*Encrypted, error) {
	if err := filex.EnsurePrivateDir(dir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	key, err := cryptox.LoadOrCreateKey(filepath.Join(dir, KeyFile))
	if err != nil {
		return nil, err
	}
	aead, err := cryptox.NewAEAD(key)
	if err != nil {
		return nil, err
	}

	db, err := InitDatabase(ctx, filepath.Join(dir, DatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("init credential db: %w", err)
	}

	return &Encrypted{Vault: NewVault(NewSQLiteBackend(db), aead), db: db}, nil
}

func (e *Encrypted) Close() error {
	return e.db.Close()
}
