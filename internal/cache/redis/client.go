package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/neu-planner/backend/internal/cache"
	"github.com/neu-planner/backend/pkg/logger"
)

// Client is a cache.Store backed by Redis.
type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (c *Client) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cache keys: %w", err)
	}
	return keys, nil
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Cleanup deletes keys under the given prefixes that expire within minTTL.
// Keys without an expiry are left alone.
func (c *Client) Cleanup(ctx context.Context, prefixes []string, minTTL time.Duration) (int, error) {
	deleted := 0
	for _, prefix := range prefixes {
		keys, err := c.Keys(ctx, prefix)
		if err != nil {
			return deleted, err
		}

		for _, key := range keys {
			ttl, err := c.client.TTL(ctx, key).Result()
			if err != nil {
				logger.Warn("Failed to read key TTL", zap.String("key", key), zap.Error(err))
				continue
			}
			if ttl < 0 || ttl >= minTTL {
				continue
			}
			if err := c.client.Del(ctx, key).Err(); err != nil {
				logger.Warn("Failed to delete cache key", zap.String("key", key), zap.Error(err))
				continue
			}
			deleted++
		}
	}

	logger.Info("Cache cleanup completed", zap.Int("deleted", deleted))
	return deleted, nil
}
