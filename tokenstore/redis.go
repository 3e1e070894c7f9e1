package tokenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one key per revoked token digest. The key TTL is the
// remaining retention, so Redis evicts entries on its own.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	opts   Options
}

// NewRedisStore returns a RedisStore. An empty prefix defaults to "rvk".
func NewRedisStore(redisClient redis.UniversalClient, prefix string, opts Options) *RedisStore {
	if prefix == "" {
		prefix = "rvk"
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
		opts:   opts.withDefaults(),
	}
}

func (s *RedisStore) key(token string) string {
	return s.prefix + ":" + digest(token)
}

// Revoke implements Store.
func (s *RedisStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	var ttl time.Duration
	if until := s.opts.retainUntil(expiresAt); !until.IsZero() {
		ttl = until.Sub(s.opts.Now())
		if ttl < time.Second {
			ttl = time.Second
		}
	}

	key := s.key(token)
	if ttl == 0 {
		if err := s.redis.Set(ctx, key, 1, 0).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnexpected, err)
		}
		return nil
	}

	// GT never shortens an existing retention.
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 1, ttl)
		pipe.ExpireGT(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	return nil
}

// IsRevoked implements Store.
func (s *RedisStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	return n > 0, nil
}
