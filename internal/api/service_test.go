package api

import (
	"context"
	"os"
	"testing"
	"time"

	"ecoroute/internal/nearest"
	"ecoroute/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_CachesByVersion(t *testing.T) {
	h := newHolder(t, &staticSource{recs: limaRecords})
	svc := NewService(Options{Holder: h, LRUSize: 8})
	ctx := context.Background()

	first, err := svc.Nearest(ctx, -12.05, -77.04, "", 0)
	require.NoError(t, err)
	second, err := svc.Nearest(ctx, -12.05, -77.04, "", 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, svc.lru.Len())

	h.Set(nearest.New([]nearest.GeoPoint{{ID: "X", Lat: -12.05, Lng: -77.04}}))
	third, err := svc.Nearest(ctx, -12.05, -77.04, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "X", third.Point.ID)
	assert.Equal(t, 2, svc.lru.Len())
}

func TestService_CacheKeyKeepsFullPrecision(t *testing.T) {
	assert.NotEqual(t,
		cacheKey("v", "", -12.0464, -77.0428),
		cacheKey("v", "", -12.04641, -77.0428))
	assert.NotEqual(t,
		cacheKey("v", "Lima", -12.0464, -77.0428),
		cacheKey("v", "", -12.0464, -77.0428))
}

func TestService_InvalidQuery(t *testing.T) {
	svc := NewService(Options{Holder: newHolder(t, &staticSource{recs: limaRecords})})

	_, err := svc.Nearest(context.Background(), nan(), -77.04, "", 0)
	assert.ErrorIs(t, err, nearest.ErrInvalidQuery)
	assert.Equal(t, 0, svc.lru.Len())
}

func TestService_RedisLayer(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping redis test")
	}
	rc := utils.OpenRedis(addr, os.Getenv("TEST_REDIS_PASSWORD"))
	t.Cleanup(func() { _ = rc.Close() })
	ctx := context.Background()

	h := newHolder(t, &staticSource{recs: limaRecords})
	key := cacheKey(h.Load().Version(), "", -12.0851, -77.0351)
	t.Cleanup(func() { rc.Del(ctx, key) })

	svc := NewService(Options{Holder: h, Redis: rc, CacheTTL: time.Minute})
	res, err := svc.Nearest(ctx, -12.0851, -77.0351, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "C-1", res.Point.ID)

	raw, err := rc.Get(ctx, key).Result()
	require.NoError(t, err)
	assert.Contains(t, raw, `"C-1"`)

	// 新实例 LRU 为空，应由 Redis 命中
	other := NewService(Options{Holder: h, Redis: rc, CacheTTL: time.Minute})
	again, err := other.Nearest(ctx, -12.0851, -77.0351, "", 0)
	require.NoError(t, err)
	assert.Equal(t, res, again)
}
