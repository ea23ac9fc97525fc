package services

import (
	"context"

	"github.com/nrana15/clio/internal/client/client"
	"github.com/nrana15/clio/internal/client/credstore"
)

// storeTokens exposes the credential store as the transport's TokenSource.
type storeTokens struct {
	store credstore.Store
}

func NewTokenSource(store credstore.Store) client.TokenSource {
	return &storeTokens{store: store}
}

func (s *storeTokens) Tokens(ctx context.Context) (string, string, error) {
	rec, err := s.store.Load(ctx)
	if err != nil {
		return "", "", err
	}
	return rec.AccessToken, rec.RefreshToken, nil
}

// Update replaces the token pair and keeps the rest of the record.
func (s *storeTokens) Update(ctx context.Context, access, refresh string) error {
	rec, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	rec.AccessToken, rec.RefreshToken = access, refresh
	return s.store.Save(ctx, rec)
}

func (s *storeTokens) Clear(ctx context.Context) error {
	return s.store.ClearAll(ctx)
}
