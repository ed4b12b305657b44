package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when the key does not exist.
var ErrMiss = errors.New("cache miss")

// Cache is the read-through cache surface the services and collaborator
// clients use for idempotency records and breaker fallback snapshots.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type redisCache struct {
	rdb *redis.Client
}

// NewRedisCache wraps an existing Redis client.
func NewRedisCache(rdb *redis.Client) Cache {
	return &redisCache{rdb: rdb}
}

// Connect opens a Redis connection and verifies it with a ping.
func Connect(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return rdb, nil
}

func (c *redisCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (c *redisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// Key builders keep the namespace in one place.

func PaymentKey(paymentID string) string {
	return "payment:" + paymentID
}

func CustomerProfileKey(customerID string) string {
	return "customer:profile:" + customerID
}
