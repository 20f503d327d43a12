package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"expensehub/config"

	"github.com/redis/go-redis/v9"
)

// Cache 简单的 JSON 键值缓存
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Invalidate(ctx context.Context, keys ...string) error
	Close() error
}

// RedisCache 基于 redis 的实现
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New 根据配置创建缓存，未启用 redis 时返回空实现
func New(ctx context.Context, cfg config.RedisConfig) (Cache, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	return NewRedis(ctx, cfg)
}

// NewRedis 连接 redis 并 ping
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*RedisCache, error) {
	const op = "cache.NewRedis"

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "cache.Get"

	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(val, result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache.Set: %w", err)
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Nop 不缓存任何内容
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, any) error { return nil }
func (Nop) Invalidate(context.Context, ...string) error { return nil }
func (Nop) Close() error { return nil }
