// Package users stores identity service accounts.
package users

import (
	"context"
	"time"

	"github.com/nrana15/clio/internal/server/models"
)

type Repository interface {
	// Create assigns an ID when user.ID is empty.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// Get and FindByIdentifier return common.ErrNotFound for a missing user.
	Get(ctx context.Context, id string) (*models.User, error)
	FindByIdentifier(ctx context.Context, phoneNumber, email string) (*models.User, error)
	// MarkLogin sets is_verified and last_login_at.
	MarkLogin(ctx context.Context, id string, at time.Time) error
}
