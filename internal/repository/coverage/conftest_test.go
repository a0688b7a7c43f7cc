package coverage

import (
	"context"
	"slices"
	"strings"

	"github.com/kailas-cloud/monkeys/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	blobs map[string][]byte
	putFn func(ctx context.Context, key string, value []byte) error
}

func newMockStore() *mockStore {
	return &mockStore{blobs: map[string][]byte{}}
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.blobs[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) Put(ctx context.Context, key string, value []byte) error {
	if m.putFn != nil {
		if err := m.putFn(ctx, key, value); err != nil {
			return err
		}
	}
	m.blobs[key] = value
	return nil
}

func (m *mockStore) Delete(_ context.Context, key string) error {
	delete(m.blobs, key)
	return nil
}

func (m *mockStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}
