// internal/pipeline/cachestore/store_test.go
package cachestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedrock-router/internal/common/config"
	"bedrock-router/internal/common/database"
	apperrors "bedrock-router/internal/common/errors"
	"bedrock-router/internal/common/logger"
)

func testCacheConfig(acceleratorEnabled bool) config.CacheConfig {
	return config.CacheConfig{
		TTLSeconds: 3600,
		Accelerator: config.AcceleratorConfig{
			Enabled:      acceleratorEnabled,
			MaxCostBytes: 1 << 20,
			NumCounters:  1000,
		},
	}
}

func newMiniredisStore(t *testing.T, acceleratorEnabled bool) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { rdb.Close() })

	store, err := New(rdb, testCacheConfig(acceleratorEnabled), logger.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	return store, mr
}

func TestStore_PutThenGet(t *testing.T) {
	store, _ := newMiniredisStore(t, true)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "key-1", "Hello world"))

	resp, ok, err := store.Get(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hello world", resp.Body)
	assert.False(t, resp.CreatedAt.IsZero())
}

func TestStore_Get_Miss(t *testing.T) {
	store, _ := newMiniredisStore(t, true)

	resp, ok, err := store.Get(context.Background(), "absent")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, resp)
}

func TestStore_TTLExpiryBehavesAsMiss(t *testing.T) {
	store, mr := newMiniredisStore(t, false)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "key-1", "payload"))

	mr.FastForward(2 * time.Hour)

	_, ok, err := store.Get(ctx, "key-1")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_AcceleratorPopulatedLazilyOnStoreHit(t *testing.T) {
	store, mr := newMiniredisStore(t, true)
	ctx := context.Background()

	// Seed Redis directly so the accelerator starts cold.
	require.NoError(t, mr.Set("key-1", `{"body":"from redis","created_at":"2026-08-28T00:00:00Z"}`))
	mr.SetTTL("key-1", time.Hour)

	resp, ok, err := store.Get(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "from redis", resp.Body)

	store.waitAccelerator()

	// Redis entry removed: a subsequent hit can only come from the accelerator.
	mr.Del("key-1")

	resp, ok, err = store.Get(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "from redis", resp.Body)
}

func TestStore_AcceleratorIsNotSourceOfTruth(t *testing.T) {
	// First store instance writes through to Redis.
	mr := miniredis.RunT(t)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	defer rdb.Close()

	first, err := New(rdb, testCacheConfig(true), logger.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, first.Put(context.Background(), "key-1", "durable"))
	first.Close() // simulated restart: accelerator contents gone

	second, err := New(rdb, testCacheConfig(true), logger.NewTestLogger(t))
	require.NoError(t, err)
	defer second.Close()

	resp, ok, err := second.Get(context.Background(), "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "durable", resp.Body)
}

func TestStore_Get_RedisFailureReturnsCacheError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectGet("key-1").SetErr(errors.New("connection refused"))

	store, err := New(&database.RedisClient{Client: client}, testCacheConfig(false), logger.NewNoOpLogger())
	require.NoError(t, err)

	resp, ok, err := store.Get(context.Background(), "key-1")
	assert.Nil(t, resp)
	assert.False(t, ok)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindCache, apperrors.KindOf(err))
}

func TestStore_Put_RedisFailureReturnsCacheError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.Regexp().ExpectSet("key-1", `.*`, time.Hour).SetErr(errors.New("throughput exceeded"))

	store, err := New(&database.RedisClient{Client: client}, testCacheConfig(false), logger.NewNoOpLogger())
	require.NoError(t, err)

	err = store.Put(context.Background(), "key-1", "payload")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindCache, apperrors.KindOf(err))
}

func TestStore_Get_CorruptEntryTreatedAsMiss(t *testing.T) {
	store, mr := newMiniredisStore(t, false)

	require.NoError(t, mr.Set("key-1", "not json"))

	resp, ok, err := store.Get(context.Background(), "key-1")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, resp)
}

func TestStore_ConcurrentReaders(t *testing.T) {
	store, _ := newMiniredisStore(t, true)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "key-1", "shared"))

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				resp, ok, err := store.Get(ctx, "key-1")
				assert.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, "shared", resp.Body)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
