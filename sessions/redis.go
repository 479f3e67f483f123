package sessions

import (
	"context"
	"errors"
	"time"

	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/redis/go-redis/v9"
)

const scanBatch = 100

var _ KV = (*RedisKV)(nil)

// RedisKV implements KV on Redis. Take uses GETDEL (Redis 6.2+).
type RedisKV struct {
	client redis.UniversalClient
}

func NewRedisKV(client redis.UniversalClient) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, redisError(err, "[RedisKV Get]")
	}
	return b, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return redisError(err, "[RedisKV Set]")
	}
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, redisError(err, "[RedisKV Delete]")
	}
	return n, nil
}

func (r *RedisKV) Take(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.GetDel(ctx, key).Bytes()
	if err != nil {
		return nil, redisError(err, "[RedisKV Take]")
	}
	return b, nil
}

func (r *RedisKV) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return redisError(err, "[RedisKV Scan]")
		}
		if len(keys) > 0 {
			if err := r.visit(ctx, keys, fn); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// visit reads a SCAN batch with one GET per key in a pipeline. Keys in a
// batch may hash to different cluster slots, which rules out MGET.
func (r *RedisKV) visit(ctx context.Context, keys []string, fn func(key string, value []byte) error) error {
	cmds := make([]*redis.StringCmd, len(keys))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.Get(ctx, k)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return redisError(err, "[RedisKV Scan] get")
	}
	for i, cmd := range cmds {
		b, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue // expired or deleted since SCAN returned it
		}
		if err != nil {
			return redisError(err, "[RedisKV Scan] get")
		}
		if err := fn(keys[i], b); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisKV) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return redisError(err, "[RedisKV Ping]")
	}
	return nil
}

func redisError(err error, op string) error {
	if errors.Is(err, redis.Nil) {
		return autherrors.Newf(autherrors.ErrNotFound, "%s: key", op)
	}
	return autherrors.Unavailable(err, op)
}
