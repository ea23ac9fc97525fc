package credentials

import (
	"context"
)

// Repository is a flat key to opaque blob map. Values are stored exactly
// as given; sealing is the caller's job.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
