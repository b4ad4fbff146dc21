package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/motorchat-core/server/internal/core/error"
)

// RedisStore backs the response cache with a network Redis instance.
type RedisStore struct {
	rdb redis.Cmdable
}

func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, errx.WrapRedis(err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisStore) Touch(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
