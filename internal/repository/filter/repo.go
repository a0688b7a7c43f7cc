package filter

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/monkeys/internal/db"
	"github.com/kailas-cloud/monkeys/internal/domain/bloom"
)

const keyPrefix = "filters/"

// store is the consumer interface for filter blobs (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Repo persists membership filters.
type Repo struct {
	store  store
	logger *zap.Logger
}

// New creates a filter repository.
func New(s store, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{store: s, logger: logger}
}

// BlobKey is the storage key of the filter identified by k.
func BlobKey(k bloom.Key) string { return keyPrefix + k.Name() }

// Load reads the filter for k. Missing blobs return db.ErrKeyNotFound; a
// blob whose header disagrees with k returns domain.ErrConfigMismatch.
func (r *Repo) Load(ctx context.Context, k bloom.Key) (*bloom.Filter, error) {
	data, err := r.store.Get(ctx, BlobKey(k))
	if err != nil {
		return nil, err
	}
	var f bloom.Filter
	if err := f.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decode filter %s: %w", BlobKey(k), err)
	}
	if err := f.Matches(k); err != nil {
		return nil, fmt.Errorf("filter %s: %w", BlobKey(k), err)
	}
	return &f, nil
}

// Save writes f under k.
func (r *Repo) Save(ctx context.Context, k bloom.Key, f *bloom.Filter) error {
	data, err := f.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode filter: %w", err)
	}
	if err := r.store.Put(ctx, BlobKey(k), data); err != nil {
		return fmt.Errorf("save filter %s: %w", BlobKey(k), err)
	}
	return nil
}

// BuildFunc builds a filter from scratch.
type BuildFunc func() (*bloom.Filter, error)

// LoadOrBuild loads the filter for k or, when none is persisted, builds and
// saves it. A failed save is logged; the built filter is still returned.
func (r *Repo) LoadOrBuild(ctx context.Context, k bloom.Key, build BuildFunc) (*bloom.Filter, bool, error) {
	f, err := r.Load(ctx, k)
	if err == nil {
		return f, false, nil
	}
	if !errors.Is(err, db.ErrKeyNotFound) {
		return nil, false, err
	}

	r.logger.Info("Building membership filter", zap.String("key", BlobKey(k)))
	f, err = build()
	if err != nil {
		return nil, false, fmt.Errorf("build filter: %w", err)
	}
	if err := f.Matches(k); err != nil {
		return nil, false, err
	}
	if err := r.Save(ctx, k, f); err != nil {
		r.logger.Warn("Failed to persist membership filter", zap.String("key", BlobKey(k)), zap.Error(err))
	}
	return f, true, nil
}
