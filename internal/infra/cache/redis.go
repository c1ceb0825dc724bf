package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"repo-digest/internal/infra/metrics"
)

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Connect открывает клиента Redis и проверяет соединение.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	start := time.Now()
	err := client.Ping(ctx).Err()
	metrics.ObserveNetworkRequest("redis", "ping", addr, start, err)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Once выполняет функцию, если ключ ещё не задан. При ошибке fn ключ снимается,
// чтобы повторная попытка могла выполниться.
func (c *RedisCache) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	start := time.Now()
	ok, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	metrics.ObserveNetworkRequest("redis", "setnx", "once", start, err)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		_ = c.client.Del(context.WithoutCancel(ctx), key).Err()
		return err
	}
	return nil
}

// Allow реализует domain.RateLimiter: фиксированное окно на INCR+EXPIRE.
func (c *RedisCache) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	start := time.Now()
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	metrics.ObserveNetworkRequest("redis", "incr", "ratelimit", start, err)
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(limit), nil
}
