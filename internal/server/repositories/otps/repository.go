// Package otps stores pending one-time code challenges, one per identifier.
package otps

import (
	"context"

	"github.com/nrana15/clio/internal/server/models"
)

type Repository interface {
	// Put replaces any challenge already pending for the identifier.
	Put(ctx context.Context, c *models.OtpChallenge) error
	// Find returns common.ErrNotFound when nothing is pending.
	Find(ctx context.Context, identifier string) (*models.OtpChallenge, error)
	// IncrementAttempts returns the new attempt count.
	IncrementAttempts(ctx context.Context, identifier string) (int, error)
	Delete(ctx context.Context, identifier string) error
	// DeleteExpired removes challenges that expired before now.
	DeleteExpired(ctx context.Context, now int64) (int64, error)
}
