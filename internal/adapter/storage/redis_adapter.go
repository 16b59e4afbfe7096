package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix   = "lock:"
	notifyKeyPrefix = "notified:"
	notifyKeyTTL    = 24 * time.Hour
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockKeyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *RedisAdapter) ReleaseLock(ctx context.Context, key string) error {
	return r.client.Del(ctx, lockKeyPrefix+key).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, notifyKeyPrefix+key, 1, notifyKeyTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
