// Package dbx provides the small DB abstractions the repositories build on:
// DBTX, satisfied by both *sql.DB and *sql.Tx, and WithTx for writes that
// must land together.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type committedError struct{ err error }

func (e committedError) Error() string { return e.err.Error() }

func (e committedError) Unwrap() error { return e.err }

// Commit marks err as an outcome rather than a failure: WithTx commits the
// writes made so far and then returns err unwrapped. A failed OTP attempt
// is the typical case, where the attempt counter must persist.
func Commit(err error) error {
	if err == nil {
		return nil
	}
	return committedError{err: err}
}

// WithTx begins a transaction and runs fn with it. The transaction commits
// when fn returns nil or an error wrapped by Commit, and rolls back on any
// other error or a panic. Panics are rethrown.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "DELETE FROM otp_challenges WHERE expires_at <= ?", now)
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}

		var outcome committedError
		if err != nil && !errors.As(err, &outcome) {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
			return
		}
		if err != nil {
			err = outcome.err
		}
	}()

	return fn(ctx, tx)
}
