// Package refreshtokens tracks issued refresh tokens by jti so they can be
// rotated and revoked.
package refreshtokens

import (
	"context"

	"github.com/nrana15/clio/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	// Find returns common.ErrNotFound for an unknown or revoked jti.
	Find(ctx context.Context, id string) (*models.RefreshToken, error)
	// Delete is a no-op for an unknown jti.
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}
