package api

import (
	"context"
	"os"
	"testing"
	"time"

	"ecoroute/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBloomPositions(t *testing.T) {
	a := bloomPositions([]byte("190.12.64.1|Lima|-12.05|-77.04"), bloomBits, bloomHashes)
	b := bloomPositions([]byte("190.12.64.1|Lima|-12.05|-77.04"), bloomBits, bloomHashes)
	require.Len(t, a, bloomHashes)
	assert.Equal(t, a, b)
	for _, p := range a {
		assert.GreaterOrEqual(t, p, int64(0))
		assert.Less(t, p, int64(bloomBits))
	}
	assert.NotEqual(t, a, bloomPositions([]byte("190.12.64.2|Lima|-12.05|-77.04"), bloomBits, bloomHashes))
}

func TestFirstSeen_WithoutRedisAlwaysCounts(t *testing.T) {
	for i := 0; i < 3; i++ {
		ok, err := firstSeen(context.Background(), nil, time.Minute, "v", "", -12.05, -77.04)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestFirstSeen_Redis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping redis test")
	}
	rc := utils.OpenRedis(addr, os.Getenv("TEST_REDIS_PASSWORD"))
	t.Cleanup(func() { _ = rc.Close() })
	ctx := context.Background()
	visitor := "test-" + time.Now().Format(time.RFC3339Nano)

	ok, err := firstSeen(ctx, rc, time.Hour, visitor, "Lima", -12.05, -77.04)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = firstSeen(ctx, rc, time.Hour, visitor, "Lima", -12.05, -77.04)
	require.NoError(t, err)
	assert.False(t, ok)
}
