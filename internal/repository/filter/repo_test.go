package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/monkeys/internal/domain"
	"github.com/kailas-cloud/monkeys/internal/domain/bloom"
)

var testWorks = []domain.Work{domain.ReconstructWork("A", "abcde")}

func testKey(digest byte) bloom.Key { return prefixedKey("test", digest) }

func prefixedKey(prefix string, digest byte) bloom.Key {
	return bloom.Key{
		Prefix: prefix,
		Params: bloom.Params{VectorBits: 4096, HashCount: 4, Family: bloom.FamilyXXH64, WindowLength: 3},
		Digest: [16]byte{digest},
	}
}

func builder(k bloom.Key, calls *int) BuildFunc {
	return func() (*bloom.Filter, error) {
		*calls++
		return bloom.Build(testWorks, k.Digest, k.Params)
	}
}

func TestLoadOrBuild_BuildsOnceThenLoads(t *testing.T) {
	ctx := context.Background()
	s := newMockStore()
	r := New(s, nil)
	k := testKey(1)
	calls := 0

	f, built, err := r.LoadOrBuild(ctx, k, builder(k, &calls))
	require.NoError(t, err)
	require.True(t, built)
	require.True(t, f.Test([]byte("bcd")))
	require.Contains(t, s.blobs, "filters/test_4096_4_xxh64_3.bloom")

	f, built, err = r.LoadOrBuild(ctx, k, builder(k, &calls))
	require.NoError(t, err)
	require.False(t, built)
	require.True(t, f.Test([]byte("cde")))
	require.Equal(t, 1, calls)
}

func TestLoad_DigestMismatch(t *testing.T) {
	ctx := context.Background()
	s := newMockStore()
	r := New(s, nil)

	k := testKey(1)
	f, err := bloom.Build(testWorks, k.Digest, k.Params)
	require.NoError(t, err)
	require.NoError(t, r.Save(ctx, k, f))

	// Same name, different corpus digest.
	_, err = r.Load(ctx, testKey(2))
	require.ErrorIs(t, err, domain.ErrConfigMismatch)

	calls := 0
	_, _, err = r.LoadOrBuild(ctx, testKey(2), builder(testKey(2), &calls))
	require.ErrorIs(t, err, domain.ErrConfigMismatch)
	require.Zero(t, calls, "a mismatched filter must never be rebuilt silently")
}

func TestLoad_CorruptBlob(t *testing.T) {
	s := newMockStore()
	k := testKey(1)
	s.blobs[BlobKey(k)] = []byte("garbage")
	_, err := New(s, nil).Load(context.Background(), k)
	require.ErrorIs(t, err, bloom.ErrBadRegionSize)
}

func TestLoadOrBuild_SaveFailureStillReturnsFilter(t *testing.T) {
	s := newMockStore()
	s.putFn = func(context.Context, string, []byte) error { return errors.New("disk full") }
	k := testKey(1)
	calls := 0

	f, built, err := New(s, nil).LoadOrBuild(context.Background(), k, builder(k, &calls))
	require.NoError(t, err)
	require.True(t, built)
	require.NotNil(t, f)
}

func TestLoadOrBuild_StoreError(t *testing.T) {
	s := newMockStore()
	s.getFn = func(context.Context, string) ([]byte, error) { return nil, domain.ErrTransientIO }
	calls := 0
	_, _, err := New(s, nil).LoadOrBuild(context.Background(), testKey(1), builder(testKey(1), &calls))
	require.ErrorIs(t, err, domain.ErrTransientIO)
	require.Zero(t, calls)
}

func TestCache_HitAndInvalidateOnKeyChange(t *testing.T) {
	ctx := context.Background()
	total := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_filter_cache_total"}, []string{"result"})
	c := NewCache(New(newMockStore(), nil), total)
	calls := 0

	k1 := testKey(1)
	f1, err := c.Get(ctx, k1, builder(k1, &calls))
	require.NoError(t, err)
	again, err := c.Get(ctx, k1, builder(k1, &calls))
	require.NoError(t, err)
	require.Same(t, f1, again)

	k2 := prefixedKey("other", 2)
	f2, err := c.Get(ctx, k2, builder(k2, &calls))
	require.NoError(t, err)
	require.NotSame(t, f1, f2)
	require.Equal(t, k2.Digest, f2.Digest())

	// Switching back loads from the store instead of rebuilding.
	_, err = c.Get(ctx, k1, builder(k1, &calls))
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	require.InDelta(t, 1, testutil.ToFloat64(total.WithLabelValues("hit")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(total.WithLabelValues("build")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(total.WithLabelValues("load")), 0)

	c.Invalidate()
	_, err = c.Get(ctx, k1, builder(k1, &calls))
	require.NoError(t, err)
	require.InDelta(t, 2, testutil.ToFloat64(total.WithLabelValues("load")), 0)
}
