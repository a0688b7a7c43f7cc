// Package control implements the out-of-band stop signal: a sentinel blob
// whose presence asks a running search to stop after the current cycle.
package control

import (
	"context"
	"fmt"
	"time"
)

// DefaultStopKey is the sentinel blob name.
const DefaultStopKey = "stop"

// store is the consumer interface for the stop sentinel (ISP).
type store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Stop reads and writes the sentinel.
type Stop struct {
	store store
	key   string
	now   func() time.Time
}

// NewStop creates a sentinel accessor; an empty key uses DefaultStopKey.
func NewStop(s store, key string) *Stop {
	if key == "" {
		key = DefaultStopKey
	}
	return &Stop{store: s, key: key, now: time.Now}
}

// Key returns the sentinel blob key.
func (s *Stop) Key() string { return s.key }

// Requested reports whether the sentinel is present.
func (s *Stop) Requested(ctx context.Context) (bool, error) {
	ok, err := s.store.Exists(ctx, s.key)
	if err != nil {
		return false, fmt.Errorf("check stop sentinel: %w", err)
	}
	return ok, nil
}

// Request writes the sentinel.
func (s *Stop) Request(ctx context.Context) error {
	if err := s.store.Put(ctx, s.key, []byte(s.now().UTC().Format(time.RFC3339))); err != nil {
		return fmt.Errorf("write stop sentinel: %w", err)
	}
	return nil
}

// Clear removes the sentinel so the next run starts.
func (s *Stop) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear stop sentinel: %w", err)
	}
	return nil
}
