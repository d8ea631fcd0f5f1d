package storecache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pthm/hxstream/lib/encoding"
)

// Redis is a Cache backed by a Redis server. Entries are signed with the
// encoder so data written by anything other than this application is
// rejected and treated as a miss.
type Redis struct {
	client     redis.UniversalClient
	encoder    *encoding.Encoder
	logger     *zap.Logger
	defaultTTL time.Duration
	sealed     bool
	closed     atomic.Bool
}

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithDefaultTTL sets the TTL used when Set is called with zero.
func WithDefaultTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.defaultTTL = ttl }
}

// WithSealedEntries encrypts entries instead of signing them.
func WithSealedEntries() RedisOption {
	return func(r *Redis) { r.sealed = true }
}

// NewRedis wraps an existing client. The cache does not own the client;
// Close only stops further use.
func NewRedis(client redis.UniversalClient, encoder *encoding.Encoder, logger *zap.Logger, opts ...RedisOption) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Redis{
		client:     client,
		encoder:    encoder,
		logger:     logger.With(zap.String("component", "storecache")),
		defaultTTL: time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
	if r.closed.Load() {
		return false, ErrClosed
	}

	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		r.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("storecache: get: %w", err)
	}

	if err := r.encoder.Decode(val, r.sealed, dst); err != nil {
		// untrusted or stale-format entry; drop it and reload
		r.logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		if delErr := r.client.Del(ctx, key).Err(); delErr != nil {
			r.logger.Error("cache delete failed", zap.String("key", key), zap.Error(delErr))
		}
		return false, nil
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if ttl <= 0 {
		ttl = r.defaultTTL
	}

	val, err := r.encoder.Encode(v, r.sealed)
	if err != nil {
		return fmt.Errorf("storecache: encode: %w", err)
	}
	if err := r.client.Set(ctx, key, val, ttl).Err(); err != nil {
		r.logger.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("storecache: set: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("storecache: delete: %w", err)
	}
	return nil
}

// Close marks the cache unusable.
func (r *Redis) Close() error {
	r.closed.Store(true)
	return nil
}
