package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/monkeys/internal/domain"
)

// RetryConfig bounds retries of transient storage failures.
type RetryConfig struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the retry policy used when none is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxTries: 5, InitialInterval: 200 * time.Millisecond, MaxInterval: 5 * time.Second}
}

// RetryingStore retries every call of the wrapped store with exponential backoff.
// Missing keys, invalid keys and cancellation are not retried. Exhausted
// retries wrap domain.ErrTransientIO.
type RetryingStore struct {
	next   Store
	cfg    RetryConfig
	logger *zap.Logger
}

var _ Store = (*RetryingStore)(nil)

// NewRetryingStore wraps next.
func NewRetryingStore(next Store, cfg RetryConfig, logger *zap.Logger) *RetryingStore {
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingStore{next: next, cfg: cfg, logger: logger}
}

// Ping is passed through without retries; WaitForReady does its own polling.
func (s *RetryingStore) Ping(ctx context.Context) error { return s.next.Ping(ctx) }

// Close closes the wrapped store.
func (s *RetryingStore) Close() error { return s.next.Close() }

// Get retrieves a blob.
func (s *RetryingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return retry(ctx, s, OpGet, key, func() ([]byte, error) { return s.next.Get(ctx, key) })
}

// Exists reports whether key is present.
func (s *RetryingStore) Exists(ctx context.Context, key string) (bool, error) {
	return retry(ctx, s, OpExists, key, func() (bool, error) { return s.next.Exists(ctx, key) })
}

// List returns keys under prefix.
func (s *RetryingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return retry(ctx, s, OpList, prefix, func() ([]string, error) { return s.next.List(ctx, prefix) })
}

// Put stores a blob.
func (s *RetryingStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := retry(ctx, s, OpPut, key, func() (struct{}, error) { return struct{}{}, s.next.Put(ctx, key, value) })
	return err
}

// Delete removes a blob.
func (s *RetryingStore) Delete(ctx context.Context, key string) error {
	_, err := retry(ctx, s, OpDelete, key, func() (struct{}, error) { return struct{}{}, s.next.Delete(ctx, key) })
	return err
}

func retry[T any](ctx context.Context, s *RetryingStore, op, key string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if s.cfg.InitialInterval > 0 {
		b.InitialInterval = s.cfg.InitialInterval
	}
	if s.cfg.MaxInterval > 0 {
		b.MaxInterval = s.cfg.MaxInterval
	}

	attempts := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		v, err := fn()
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.cfg.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Warn("storage operation failed, retrying",
				zap.String("op", op),
				zap.String("key", key),
				zap.Duration("backoff", next),
				zap.Error(err),
			)
		}),
	)
	if err == nil {
		return res, nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if !retryable(err) {
		return res, err
	}
	return res, fmt.Errorf("%s %s after %d attempts: %w: %w", op, key, attempts, domain.ErrTransientIO, err)
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrKeyNotFound),
		errors.Is(err, ErrInvalidKey),
		errors.Is(err, ErrClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
