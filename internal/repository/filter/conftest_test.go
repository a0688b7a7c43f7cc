package filter

import (
	"context"

	"github.com/kailas-cloud/monkeys/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	blobs map[string][]byte
	getFn func(ctx context.Context, key string) ([]byte, error)
	putFn func(ctx context.Context, key string, value []byte) error
	puts  int
}

func newMockStore() *mockStore {
	return &mockStore{blobs: map[string][]byte{}}
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	v, ok := m.blobs[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) Put(ctx context.Context, key string, value []byte) error {
	m.puts++
	if m.putFn != nil {
		return m.putFn(ctx, key, value)
	}
	m.blobs[key] = value
	return nil
}
