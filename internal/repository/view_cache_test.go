package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Shootdown/internal/domain/models"
	"Shootdown/pkg/cache"
)

type cacheMetrics struct {
	results []string
}

func (m *cacheMetrics) RecordViewComputed(string)     {}
func (m *cacheMetrics) RecordError(string)            {}
func (m *cacheMetrics) RecordLatency(string, float64) {}
func (m *cacheMetrics) RecordCache(result string)     { m.results = append(m.results, result) }
func (m *cacheMetrics) RecordLastClose(float64)       {}

func TestViewCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()
	m := &cacheMetrics{}
	vc := NewViewCache(mc, m)

	_, ok, err := vc.Get(ctx, "20260114")
	require.NoError(t, err)
	assert.False(t, ok)

	in := &models.View{
		Bear:     models.SideView{RangeLabel: []string{"19,875 - 19,999"}, Net: []int64{150}},
		BullMax:  1,
		Max:      150,
		HSIClose: 19875,
	}
	require.NoError(t, vc.Set(ctx, "20260114", in, time.Minute))

	got, ok, err := vc.Get(ctx, "20260114")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, got)

	require.NoError(t, vc.Invalidate(ctx, "20260114"))
	_, ok, err = vc.Get(ctx, "20260114")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{"miss", "hit", "miss"}, m.results)
}

func TestViewCacheLock(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()
	vc := NewViewCache(mc, nil)

	require.NoError(t, vc.Set(ctx, "20260114", &models.View{}, time.Minute))

	ok, err := vc.Lock(ctx, "20260114", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = vc.Lock(ctx, "20260114", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, vc.Unlock(ctx, "20260114"))
	ok, err = vc.Lock(ctx, "20260114", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	_, found, err := vc.Get(ctx, "20260114")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestViewKey(t *testing.T) {
	assert.Equal(t, "residual_view:20260114", ViewKey("20260114"))
}

func TestViewCacheInvalidateAllKeepsLocks(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()
	vc := NewViewCache(mc, nil)

	require.NoError(t, vc.Set(ctx, "20260113", &models.View{}, time.Minute))
	require.NoError(t, vc.Set(ctx, "20260114", &models.View{}, time.Minute))
	ok, err := vc.Lock(ctx, "20260114", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, vc.InvalidateAll(ctx))

	for _, date := range []string{"20260113", "20260114"} {
		_, found, err := vc.Get(ctx, date)
		require.NoError(t, err)
		assert.False(t, found, date)
	}
	ok, err = vc.Lock(ctx, "20260114", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}
