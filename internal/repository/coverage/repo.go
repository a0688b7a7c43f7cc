// Package coverage persists coverage checkpoints: a JSON manifest plus one
// bitmap blob per work, written generation by generation.
package coverage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang/snappy"
	"go.uber.org/zap"

	"github.com/kailas-cloud/monkeys/internal/db"
	"github.com/kailas-cloud/monkeys/internal/domain"
	"github.com/kailas-cloud/monkeys/internal/domain/bitmap"
	"github.com/kailas-cloud/monkeys/internal/domain/checkpoint"
)

const (
	keyPrefix   = "coverage/"
	manifestKey = keyPrefix + "checkpoint.json"
)

// store is the consumer interface for checkpoints (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Repo reads and writes checkpoints.
type Repo struct {
	store       store
	compression string
	now         func() time.Time
	logger      *zap.Logger
}

// New creates a checkpoint repository writing uncompressed bitmaps.
func New(s store, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{store: s, compression: CompressionNone, now: time.Now, logger: logger}
}

// WithCompression selects the bitmap blob encoding for future saves.
func (r *Repo) WithCompression(c string) *Repo {
	if c == CompressionSnappy {
		r.compression = CompressionSnappy
	} else {
		r.compression = CompressionNone
	}
	return r
}

// WithClock overrides the timestamp source.
func (r *Repo) WithClock(now func() time.Time) *Repo {
	r.now = now
	return r
}

// Load reads the current checkpoint. No manifest yields an empty checkpoint
// and no error.
func (r *Repo) Load(ctx context.Context) (checkpoint.Checkpoint, error) {
	m, err := r.manifest(ctx)
	if errors.Is(err, db.ErrKeyNotFound) {
		return checkpoint.Checkpoint{Bitmaps: map[string]*bitmap.Bitmap{}}, nil
	}
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}

	cp := checkpoint.Checkpoint{
		Generation: m.Generation,
		Iterations: m.Iterations,
		Timestamp:  m.Timestamp,
		RunID:      m.RunID,
		Bitmaps:    make(map[string]*bitmap.Bitmap, len(m.Works)),
	}
	for _, w := range m.Works {
		raw, err := r.store.Get(ctx, w.Key)
		if err != nil {
			return checkpoint.Checkpoint{}, fmt.Errorf("load bitmap %s: %w", w.Key, err)
		}
		if m.Compression == CompressionSnappy {
			if raw, err = snappy.Decode(nil, raw); err != nil {
				return checkpoint.Checkpoint{}, fmt.Errorf("decompress bitmap %s: %w", w.Key, err)
			}
		}
		b, err := bitmap.Unmarshal(raw, w.Length)
		if err != nil {
			return checkpoint.Checkpoint{}, fmt.Errorf("bitmap %s: %w", w.Key, err)
		}
		cp.Bitmaps[w.Name] = b
	}
	return cp, nil
}

func (r *Repo) manifest(ctx context.Context) (manifestDTO, error) {
	data, err := r.store.Get(ctx, manifestKey)
	if err != nil {
		return manifestDTO{}, err
	}
	var m manifestDTO
	if err := json.Unmarshal(data, &m); err != nil {
		return manifestDTO{}, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Version != manifestVersion {
		return manifestDTO{}, domain.NewMismatch("manifest version", m.Version, manifestVersion)
	}
	return m, nil
}

// Save writes cp as the next generation and returns it. Bitmaps are written
// first, then the manifest is swapped to point at them, then every generation
// the manifest does not name is removed. Any failure before the swap leaves
// the previous checkpoint as the current one. A generation the stored manifest
// names is never written over or deleted, even when the manifest write that
// produced it was reported as failed.
func (r *Repo) Save(ctx context.Context, cp checkpoint.Checkpoint) (uint64, error) {
	gen := cp.Generation + 1
	if cur, err := r.manifest(ctx); err == nil && cur.Generation >= gen {
		r.logger.Warn("Stored checkpoint is ahead of the caller",
			zap.Uint64("stored_generation", cur.Generation),
			zap.Uint64("caller_generation", cp.Generation),
		)
		gen = cur.Generation + 1
	}
	prefix := generationPrefix(gen)

	names := make([]string, 0, len(cp.Bitmaps))
	for name := range cp.Bitmaps {
		names = append(names, name)
	}
	slices.Sort(names)

	m := manifestDTO{
		Version:     manifestVersion,
		Generation:  gen,
		Iterations:  cp.Iterations,
		Timestamp:   r.now().UTC(),
		RunID:       cp.RunID,
		Compression: r.compression,
		Works:       make([]workEntry, 0, len(names)),
	}

	used := make(map[string]bool, len(names))
	for _, name := range names {
		b := cp.Bitmaps[name]
		key := prefix + uniqueSlug(used, domain.Slug(name)) + ".bit"
		raw, _ := b.MarshalBinary()
		if r.compression == CompressionSnappy {
			raw = snappy.Encode(nil, raw)
		}
		if err := r.store.Put(ctx, key, raw); err != nil {
			r.discard(ctx, prefix)
			return cp.Generation, fmt.Errorf("write bitmap %s: %w", key, err)
		}
		m.Works = append(m.Works, workEntry{Name: name, Key: key, Length: b.Len()})
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return cp.Generation, fmt.Errorf("encode manifest: %w", err)
	}
	if err := r.store.Put(ctx, manifestKey, data); err != nil {
		// The write may have landed anyway; keep the generation if it did.
		if cur, rerr := r.manifest(ctx); rerr == nil && cur.Generation != gen {
			r.discard(ctx, prefix)
		}
		return cp.Generation, fmt.Errorf("write manifest: %w", err)
	}

	r.sweep(ctx, prefix)
	return gen, nil
}

// sweep removes every generation except keep, best effort.
func (r *Repo) sweep(ctx context.Context, keep string) {
	keys, err := r.store.List(ctx, keyPrefix+"g")
	if err != nil {
		r.logger.Warn("Failed to list checkpoint generations", zap.Error(err))
		return
	}
	for _, k := range keys {
		if strings.HasPrefix(k, keep) {
			continue
		}
		if err := r.store.Delete(ctx, k); err != nil {
			r.logger.Warn("Failed to delete checkpoint blob", zap.String("key", k), zap.Error(err))
		}
	}
}

// discard removes every blob under prefix, best effort.
func (r *Repo) discard(ctx context.Context, prefix string) {
	keys, err := r.store.List(ctx, prefix)
	if err != nil {
		r.logger.Warn("Failed to list checkpoint generation", zap.String("prefix", prefix), zap.Error(err))
		return
	}
	for _, k := range keys {
		if err := r.store.Delete(ctx, k); err != nil {
			r.logger.Warn("Failed to delete checkpoint blob", zap.String("key", k), zap.Error(err))
		}
	}
}

func generationPrefix(gen uint64) string {
	return keyPrefix + "g" + strconv.FormatUint(gen, 10) + "/"
}

func uniqueSlug(used map[string]bool, slug string) string {
	if slug == "" {
		slug = "work"
	}
	candidate := slug
	for n := 2; used[candidate]; n++ {
		candidate = slug + "_" + strconv.Itoa(n)
	}
	used[candidate] = true
	return candidate
}
