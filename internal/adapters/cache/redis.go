package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisCache stores client working copies (category lists, item pages) in
// Redis with a TTL. Cache trouble is never surfaced: a miss means a
// re-fetch against the backend, which stays authoritative.
type RedisCache struct {
	client *redis.Client
	logger zerolog.Logger
}

type RedisCacheParams struct {
	Addr     string
	Password string
	DB       int
	Logger   zerolog.Logger
}

func NewRedisCache(params RedisCacheParams) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     params.Addr,
		Password: params.Password,
		DB:       params.DB,
	})
	return &RedisCache{
		client: client,
		logger: params.Logger.With().Str("component", "redis_cache").Logger(),
	}
}

// Ping verifies the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return nil, false
	}
	return payload, true
}

func (c *RedisCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("Cache invalidation failed")
	}
}

// Close releases the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
