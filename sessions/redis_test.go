package sessions_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *sessions.RedisKV) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, sessions.NewRedisKV(client)
}

func TestRedisKV_GetSetDelete(t *testing.T) {
	_, kv := newTestRedis(t)
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	require.ErrorIs(t, err, autherrors.ErrNotFound)

	require.NoError(t, kv.Set(ctx, "k", []byte("v"), time.Minute))
	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(v))

	n, err := kv.Delete(ctx, "k", "other")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = kv.Delete(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRedisKV_TTLExpiry(t *testing.T) {
	mr, kv := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	_, err := kv.Get(ctx, "k")
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}

func TestRedisKV_TakeIsSingleUse(t *testing.T) {
	_, kv := newTestRedis(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "once", []byte("v"), time.Minute))

	const callers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := kv.Take(ctx, "once"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestRedisKV_ScanByPrefix(t *testing.T) {
	_, kv := newTestRedis(t)
	ctx := context.Background()
	for _, k := range []string{"session:a", "session:b", "refresh:c"} {
		require.NoError(t, kv.Set(ctx, k, []byte(k), time.Minute))
	}

	seen := map[string]string{}
	err := kv.Scan(ctx, "session:", func(key string, value []byte) error {
		seen[key] = string(value)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"session:a": "session:a", "session:b": "session:b"}, seen)
}

func TestRedisKV_ScanAcrossBatches(t *testing.T) {
	_, kv := newTestRedis(t)
	ctx := context.Background()
	want := map[string]string{}
	for i := 0; i < 250; i++ {
		k := fmt.Sprintf("session:{u%d}:%d", i%7, i)
		require.NoError(t, kv.Set(ctx, k, []byte(k), time.Minute))
		want[k] = k
	}

	seen := map[string]string{}
	err := kv.Scan(ctx, "session:", func(key string, value []byte) error {
		seen[key] = string(value)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, want, seen)
}

func TestRedisKV_Unavailable(t *testing.T) {
	mr, kv := newTestRedis(t)
	mr.Close()

	ctx := context.Background()
	require.ErrorIs(t, kv.Ping(ctx), autherrors.ErrStoreUnavailable)
	_, err := kv.Get(ctx, "k")
	require.ErrorIs(t, err, autherrors.ErrStoreUnavailable)
}
