package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/monkeys/internal/domain"
)

type flakyStore struct {
	failures int
	calls    int
	err      error
	data     []byte
}

func (f *flakyStore) fail() error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyStore) Ping(context.Context) error { return f.fail() }
func (f *flakyStore) Close() error               { return nil }
func (f *flakyStore) Get(context.Context, string) ([]byte, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.data, nil
}
func (f *flakyStore) Exists(context.Context, string) (bool, error) { return true, f.fail() }
func (f *flakyStore) List(context.Context, string) ([]string, error) {
	return nil, f.fail()
}
func (f *flakyStore) Put(_ context.Context, _ string, v []byte) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.data = v
	return nil
}
func (f *flakyStore) Delete(context.Context, string) error { return f.fail() }

func fastRetry(tries uint) RetryConfig {
	return RetryConfig{MaxTries: tries, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetryingStoreRecovers(t *testing.T) {
	inner := &flakyStore{failures: 2, err: errors.New("connection reset")}
	s := NewRetryingStore(inner, fastRetry(5), nil)

	require.NoError(t, s.Put(context.Background(), "k", []byte("v")))
	require.Equal(t, 3, inner.calls)
	require.Equal(t, []byte("v"), inner.data)
}

func TestRetryingStoreExhaustsToTransientIO(t *testing.T) {
	inner := &flakyStore{failures: 10, err: errors.New("connection reset")}
	s := NewRetryingStore(inner, fastRetry(3), nil)

	_, err := s.Get(context.Background(), "k")
	require.ErrorIs(t, err, domain.ErrTransientIO)
	require.ErrorContains(t, err, "connection reset")
	require.Equal(t, 3, inner.calls)
}

func TestRetryingStoreDoesNotRetryNotFound(t *testing.T) {
	inner := &flakyStore{failures: 10, err: ErrKeyNotFound}
	s := NewRetryingStore(inner, fastRetry(5), nil)

	_, err := s.Get(context.Background(), "k")
	require.ErrorIs(t, err, ErrKeyNotFound)
	require.NotErrorIs(t, err, domain.ErrTransientIO)
	require.Equal(t, 1, inner.calls)
}

func TestRetryingStoreHonoursCancel(t *testing.T) {
	inner := &flakyStore{failures: 10, err: errors.New("timeout")}
	s := NewRetryingStore(inner, RetryConfig{MaxTries: 100, InitialInterval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Delete(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, inner.calls)
}

func TestWaitForReady(t *testing.T) {
	inner := &flakyStore{failures: 2, err: errors.New("down")}
	require.NoError(t, WaitForReady(context.Background(), inner, time.Second))

	dead := &flakyStore{failures: 1 << 30, err: errors.New("down")}
	err := WaitForReady(context.Background(), dead, 150*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestValidateKey(t *testing.T) {
	require.NoError(t, ValidateKey("coverage/g1/hamlet.bit"))
	for _, k := range []string{"", "/abs", "a/../b", "./a", "a/"} {
		require.ErrorIs(t, ValidateKey(k), ErrInvalidKey, k)
	}
}
