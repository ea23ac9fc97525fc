package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nrana15/clio/internal/common"
	"github.com/nrana15/clio/internal/dbx"
	"github.com/nrana15/clio/internal/server/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectUser = `SELECT id, phone_number, email, full_name, is_verified, created_at, last_login_at FROM users`

func (r *SQLiteRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, phone_number, email, full_name, is_verified, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, nullString(user.PhoneNumber), nullString(user.Email), user.FullName, user.IsVerified, user.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE id = ?`, id))
}

func (r *SQLiteRepository) FindByIdentifier(ctx context.Context, phoneNumber, email string) (*models.User, error) {
	if phoneNumber != "" {
		return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE phone_number = ?`, phoneNumber))
	}
	return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE email = ?`, email))
}

func (r *SQLiteRepository) MarkLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_verified = 1, last_login_at = ? WHERE id = ?`, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u         models.User
		phone     sql.NullString
		email     sql.NullString
		createdAt int64
		lastLogin sql.NullInt64
	)
	err := row.Scan(&u.ID, &phone, &email, &u.FullName, &u.IsVerified, &createdAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	u.PhoneNumber = phone.String
	u.Email = email.String
	u.CreatedAt = time.Unix(createdAt, 0)
	if lastLogin.Valid {
		t := time.Unix(lastLogin.Int64, 0)
		u.LastLoginAt = &t
	}
	return &u, nil
}

// nullString keeps empty identifiers out of the UNIQUE indexes.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
