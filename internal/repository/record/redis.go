package record

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "record:"

type redisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedis returns a Store keeping each record as a Redis string with a native TTL.
func NewRedis(client *redis.Client, namespace string) Store {
	return &redisStore{client: client, namespace: namespace}
}

func (r *redisStore) key(key string) string {
	return redisKeyPrefix + r.namespace + ":" + key
}

func (r *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (r *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *redisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
