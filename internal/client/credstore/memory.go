package credstore

import (
	"context"
	"sync"

	"github.com/nrana15/clio/internal/client/repositories/credentials"
)

// MemoryBackend keeps blobs in a map guarded by a mutex.
type MemoryBackend struct {
	mu   sync.RWMutex
	data memRepo
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: memRepo{}}
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.Get(ctx, key)
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Set(ctx, key, value)
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Delete(ctx, key)
}

func (m *MemoryBackend) List(ctx context.Context) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.List(ctx)
}

func (m *MemoryBackend) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Clear(ctx)
}

// Update applies fn to a copy and swaps it in only if fn succeeds.
func (m *MemoryBackend) Update(ctx context.Context, fn func(repo credentials.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	draft := m.data.clone()
	if err := fn(draft); err != nil {
		return err
	}
	m.data = draft
	return nil
}

type memRepo map[string][]byte

func (r memRepo) clone() memRepo {
	out := make(memRepo, len(r))
	for k, v := range r {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

func (r memRepo) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := r[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (r memRepo) Set(_ context.Context, key string, value []byte) error {
	r[key] = append([]byte(nil), value...)
	return nil
}

func (r memRepo) Delete(_ context.Context, key string) error {
	delete(r, key)
	return nil
}

func (r memRepo) List(ctx context.Context) (map[string][]byte, error) {
	return r.clone(), nil
}

func (r memRepo) Clear(_ context.Context) error {
	for k := range r {
		delete(r, k)
	}
	return nil
}

// Plain is a Sealer that stores values as is.
type Plain struct{}

func (Plain) Seal(_ string, plaintext []byte) ([]byte, error) {
	return append([]byte(nil), plaintext...), nil
}

func (Plain) Open(_ string, sealed []byte) ([]byte, error) {
	return append([]byte(nil), sealed...), nil
}

// NewMemory returns an unencrypted in-process store.
func NewMemory() *Vault {
	return NewVault(NewMemoryBackend(), Plain{})
}
