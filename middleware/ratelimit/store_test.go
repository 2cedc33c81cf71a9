package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, "test:ratelimit"), mr
}

func newMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()

	store := NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// storeContract runs the behaviour every backend must share.
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("get non-existent key", func(t *testing.T) {
		store := newStore(t)

		count, resetTime, exists, err := store.Get(ctx, "non-existent")

		require.NoError(t, err)
		assert.False(t, exists)
		assert.Equal(t, 0, count)
		assert.True(t, resetTime.IsZero())
	})

	t.Run("set and get", func(t *testing.T) {
		store := newStore(t)
		resetTime := time.Now().Add(time.Minute)

		require.NoError(t, store.Set(ctx, "key", 5, resetTime))

		count, got, exists, err := store.Get(ctx, "key")
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, 5, count)
		assert.WithinDuration(t, resetTime, got, time.Second)
	})

	t.Run("increment new and existing key", func(t *testing.T) {
		store := newStore(t)
		resetTime := time.Now().Add(time.Minute)

		count, window, err := store.Increment(ctx, "counter", resetTime)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.WithinDuration(t, resetTime, window, time.Second)

		count, window, err = store.Increment(ctx, "counter", time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.WithinDuration(t, resetTime, window, time.Second, "window must not slide")
	})

	t.Run("reset", func(t *testing.T) {
		store := newStore(t)

		_, _, err := store.Increment(ctx, "reset-me", time.Now().Add(time.Minute))
		require.NoError(t, err)
		require.NoError(t, store.Reset(ctx, "reset-me"))
		require.NoError(t, store.Reset(ctx, "never-existed"))

		_, _, exists, err := store.Get(ctx, "reset-me")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("concurrent increments", func(t *testing.T) {
		store := newStore(t)
		resetTime := time.Now().Add(time.Minute)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := store.Increment(ctx, "concurrent", resetTime)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		count, _, exists, err := store.Get(ctx, "concurrent")
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, 10, count)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store { return newMemoryStore(t) })

	t.Run("expired entries are invisible and swept", func(t *testing.T) {
		store := newMemoryStore(t)
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "expired", 5, time.Now().Add(-time.Minute)))

		_, _, exists, err := store.Get(ctx, "expired")
		require.NoError(t, err)
		assert.False(t, exists)

		count, _, err := store.Increment(ctx, "expired", time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, count, "expired window restarts")

		require.NoError(t, store.Set(ctx, "stale", 1, time.Now().Add(-time.Second)))
		store.sweep(time.Now())
		assert.Equal(t, 1, store.Len())
	})

	t.Run("close is idempotent", func(t *testing.T) {
		store := NewMemoryStore()
		assert.NoError(t, store.Close())
		assert.NoError(t, store.Close())
	})
}

func TestRedisStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		store, _ := newRedisStore(t)
		return store
	})

	t.Run("keys are prefixed and expire", func(t *testing.T) {
		store, mr := newRedisStore(t)
		ctx := context.Background()

		_, _, err := store.Increment(ctx, "auth:10.0.0.1", time.Now().Add(time.Minute))
		require.NoError(t, err)

		assert.True(t, mr.Exists("test:ratelimit:auth:10.0.0.1"))
		assert.Greater(t, mr.TTL("test:ratelimit:auth:10.0.0.1"), time.Duration(0))

		mr.FastForward(2 * time.Minute)

		_, _, exists, err := store.Get(ctx, "auth:10.0.0.1")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("set with past reset deletes", func(t *testing.T) {
		store, mr := newRedisStore(t)
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "k", 3, time.Now().Add(time.Minute)))
		require.NoError(t, store.Set(ctx, "k", 3, time.Now().Add(-time.Minute)))

		assert.False(t, mr.Exists("test:ratelimit:k"))
	})

	t.Run("unreachable server returns errors", func(t *testing.T) {
		store, mr := newRedisStore(t)
		mr.Close()

		_, _, _, err := store.Get(context.Background(), "k")
		assert.Error(t, err)
		_, _, err = store.Increment(context.Background(), "k", time.Now().Add(time.Minute))
		assert.Error(t, err)
	})

	t.Run("default prefix", func(t *testing.T) {
		store := NewRedisStore(nil, "")
		assert.Equal(t, "ratelimit:x", store.key("x"))
	})
}
