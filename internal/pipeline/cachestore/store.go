// internal/pipeline/cachestore/store.go
package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/redis/go-redis/v9"

	"bedrock-router/internal/common/config"
	"bedrock-router/internal/common/database"
	apperrors "bedrock-router/internal/common/errors"
	"bedrock-router/internal/common/logger"
)

// CachedResponse is the cache entry payload. TTL is owned by the store tier;
// CreatedAt is informational.
type CachedResponse struct {
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the cache-aside adapter. Redis is the authoritative tier; an
// optional ristretto accelerator is consulted first and populated lazily on
// Redis hits. Losing the accelerator loses latency, never data.
type Store struct {
	rdb    *database.RedisClient
	accel  *ristretto.Cache
	ttl    time.Duration
	logger logger.Logger
}

func New(rdb *database.RedisClient, cfg config.CacheConfig, log logger.Logger) (*Store, error) {
	s := &Store{
		rdb:    rdb,
		ttl:    cfg.TTL(),
		logger: log.WithFields(map[string]interface{}{"component": "cachestore"}),
	}

	if cfg.Accelerator.Enabled {
		accel, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: cfg.Accelerator.NumCounters,
			MaxCost:     cfg.Accelerator.MaxCostBytes,
			BufferItems: 64,
		})
		if err != nil {
			return nil, err
		}
		s.accel = accel
	}

	return s, nil
}

// Get looks up a key. Returns (nil, false, nil) on miss, including TTL
// expiry. Errors from the store tier are returned so the caller can apply
// its non-fatal cache policy; the accelerator never produces errors.
func (s *Store) Get(ctx context.Context, key string) (*CachedResponse, bool, error) {
	if s.accel != nil {
		if v, ok := s.accel.Get(key); ok {
			if resp, ok := v.(*CachedResponse); ok {
				return resp, true, nil
			}
		}
	}

	data, err := s.rdb.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewCacheUnavailable("get", err)
	}

	var resp CachedResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		// Corrupt entry: treat as a miss so it gets overwritten.
		s.logger.Warn("discarding undecodable cache entry", map[string]interface{}{
			"key": key,
		})
		return nil, false, nil
	}

	s.fillAccelerator(ctx, key, &resp)

	return &resp, true, nil
}

// Put stores a freshly computed response with the configured TTL. A returned
// error never invalidates the computed result; callers log it and move on.
func (s *Store) Put(ctx context.Context, key string, body string) error {
	resp := &CachedResponse{
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return apperrors.NewCacheUnavailable("put", err)
	}

	if err := s.rdb.Set(ctx, key, data, s.ttl); err != nil {
		return apperrors.NewCacheUnavailable("put", err)
	}

	if s.accel != nil {
		s.accel.SetWithTTL(key, resp, int64(len(body)), s.ttl)
	}
	return nil
}

// Close releases the accelerator. The Redis client is owned by the caller.
func (s *Store) Close() {
	if s.accel != nil {
		s.accel.Close()
	}
}

// fillAccelerator copies a Redis hit into the accelerator, bounded by the
// entry's remaining lifetime so the accelerator never outlives the store.
func (s *Store) fillAccelerator(ctx context.Context, key string, resp *CachedResponse) {
	if s.accel == nil {
		return
	}

	ttl := s.ttl
	if remaining, err := s.rdb.PTTL(ctx, key); err == nil && remaining > 0 {
		ttl = remaining
	}
	s.accel.SetWithTTL(key, resp, int64(len(resp.Body)), ttl)
}

// waitAccelerator flushes pending async accelerator writes. Test hook.
func (s *Store) waitAccelerator() {
	if s.accel != nil {
		s.accel.Wait()
	}
}
