package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	ID    string  `json:"id"`
	Price float64 `json:"price"`
}

func TestMemoryCacheRoundTripsStructs(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	in := []entry{{ID: "a", Price: 1.5}, {ID: "b", Price: 2}}
	require.NoError(t, mc.Set(ctx, "k", in, time.Minute))

	var out []entry
	require.NoError(t, mc.Get(ctx, "k", &out))
	assert.Equal(t, in, out)

	var f float64
	require.NoError(t, mc.Set(ctx, "f", 101.25, 0))
	require.NoError(t, mc.Get(ctx, "f", &f))
	assert.Equal(t, 101.25, f)
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", 1, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "adjustments:BTCUSDT", 1, 0))
	require.NoError(t, mc.Set(ctx, "adjustments:ETHUSDT", 2, 0))
	require.NoError(t, mc.Set(ctx, "mark:BTCUSDT", 3, 0))

	require.NoError(t, mc.DeleteByPattern(ctx, NamespacePattern("adjustments")))

	ok, _ := mc.Exists(ctx, "adjustments:BTCUSDT", "adjustments:ETHUSDT")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "mark:BTCUSDT")
	assert.True(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", 2, 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	ok, _ := mc.Exists(ctx, "a")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "b", "c")
	assert.True(t, ok)
}

func TestMemoryCacheGetRefreshesRecency(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	require.NoError(t, mc.Set(ctx, "b", 2, 0))
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	ok, _ := mc.Exists(ctx, "b")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "a", "c")
	assert.True(t, ok)
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCacheSweepDropsExpired(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "short", 1, time.Second))
	require.NoError(t, mc.Set(ctx, "long", 2, time.Hour))
	now = now.Add(time.Minute)
	mc.sweep()

	assert.Equal(t, 1, mc.Len())
	ok, _ := mc.Exists(ctx, "long")
	assert.True(t, ok)
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "mark:BTCUSDT", Key("mark", "BTCUSDT"))
	assert.True(t, matchPattern(NamespacePattern("adjustments"), "adjustments:ETHUSDT"))
	assert.False(t, matchPattern(NamespacePattern("adjustments"), "mark:ETHUSDT"))
}
