package otps

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *SQLiteRepository) Put(ctx context.Context, c *models.OtpChallenge) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO otp_challenges (identifier, code_hash, attempts, expires_at, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			code_hash = excluded.code_hash,
			attempts = excluded.attempts,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`, c.Identifier, c.CodeHash, c.Attempts, c.ExpiresAt.Unix(), c.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to put otp challenge: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Find(ctx context.Context, identifier string) (*models.OtpChallenge, error) {
	var (
		c                    models.OtpChallenge
		expiresAt, createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT identifier, code_hash, attempts, expires_at, created_at FROM otp_challenges WHERE identifier = ?`, identifier).
		Scan(&c.Identifier, &c.CodeHash, &c.Attempts, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find otp challenge: %w", err)
	}
	c.ExpiresAt = time.Unix(expiresAt, 0)
	c.CreatedAt = time.Unix(createdAt, 0)
	return &c, nil
}

func (r *SQLiteRepository) IncrementAttempts(ctx context.Context, identifier string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx,
		`UPDATE otp_challenges SET attempts = attempts + 1 WHERE identifier = ? RETURNING attempts`, identifier).
		Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, common.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count otp attempt: %w", err)
	}
	return attempts, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, identifier string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE identifier = ?`, identifier); err != nil {
		return fmt.Errorf("failed to delete otp challenge: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge otp challenges: %w", err)
	}
	return res.RowsAffected()
}
