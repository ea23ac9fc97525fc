package credstore

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nrana15/clio/internal/client/repositories/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestInitDatabase_CreatesCredentialsTable(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "app.db")

	db, err := InitDatabase(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, tableExists(t, db, "goose_db_version"))
	assert.True(t, tableExists(t, db, "credentials"))
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	ctx := context.Background()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db))
	assert.True(t, tableExists(t, db, "credentials"))
}

func TestOpenEncrypted_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")

	s, err := OpenEncrypted(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, &Record{AccessToken: "a1", RefreshToken: "r1", UserID: "u1", PhoneNumber: "+886912345678"}))
	require.NoError(t, s.Close())

	s, err = OpenEncrypted(ctx, dir)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Record{AccessToken: "a1", RefreshToken: "r1", UserID: "u1", PhoneNumber: "+886912345678"}, rec)

	info, err := os.Stat(filepath.Join(dir, KeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestOpenEncrypted_ValuesAreSealedOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenEncrypted(ctx, dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetAccessToken(ctx, "plain-access-token"))

	var raw []byte
	require.NoError(t, s.db.QueryRow(`SELECT value FROM credentials WHERE key = ?`, "access_token").Scan(&raw))
	assert.NotContains(t, string(raw), "plain-access-token")
}

func TestOpenEncrypted_NewKeyMakesOldValuesCorrupt(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenEncrypted(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.SetAccessToken(ctx, "a1"))
	require.NoError(t, s.Close())

	require.NoError(t, os.Remove(filepath.Join(dir, KeyFile)))

	s, err = OpenEncrypted(ctx, dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.IsLoggedIn(ctx)
	require.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, s.ClearAll(ctx))
	ok, err := s.IsLoggedIn(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteBackend_UpdateRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO credentials`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO credentials`).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	b := NewSQLiteBackend(db)
	err = b.Update(context.Background(), func(repo credentials.Repository) error {
		if err := repo.Set(context.Background(), "access_token", []byte("a")); err != nil {
			return err
		}
		return repo.Set(context.Background(), "refresh_token", []byte("r"))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set credential[refresh_token]")
	require.NoError(t, mock.ExpectationsWereMet())
}
