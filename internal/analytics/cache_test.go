package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyVariesWithKindAccountAndParams(t *testing.T) {
	base := CacheKey("trends", "act_1", TrendQuery{AccountID: "act_1", LookbackDays: 30})

	assert.NotEqual(t, base, CacheKey("fatigue", "act_1", TrendQuery{AccountID: "act_1", LookbackDays: 30}))
	assert.NotEqual(t, base, CacheKey("trends", "act_2", TrendQuery{AccountID: "act_2", LookbackDays: 30}))
	assert.NotEqual(t, base, CacheKey("trends", "act_1", TrendQuery{AccountID: "act_1", LookbackDays: 60}))
	assert.Equal(t, base, CacheKey("trends", "act_1", TrendQuery{AccountID: "act_1", LookbackDays: 30}))
}

func TestMemoryCacheExpiresEntries(t *testing.T) {
	c := NewMemoryCache()
	current := time.Date(2026, 6, 20, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }
	ctx := context.Background()

	c.Set(ctx, "k", []byte("payload"), time.Hour)

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	current = current.Add(2 * time.Hour)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCacheMissOnUnknownKey(t *testing.T) {
	c := NewMemoryCache()
	_, ok := c.Get(context.Background(), "nope")
	assert.False(t, ok)
}

func TestCachedComputesOnceThenHits(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	type payload struct {
		N int `json:"n"`
	}
	computes := 0
	compute := func() (*payload, error) {
		computes++
		return &payload{N: 42}, nil
	}

	first, hit, err := cached(ctx, c, "k", time.Hour, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 42, first.N)

	second, hit, err := cached(ctx, c, "k", time.Hour, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42, second.N)
	assert.Equal(t, 1, computes)
}

func TestCachedToleratesNilCache(t *testing.T) {
	type payload struct {
		N int `json:"n"`
	}
	got, hit, err := cached(context.Background(), nil, "k", time.Hour, func() (*payload, error) {
		return &payload{N: 7}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, got.N)
}
