package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSeatCache(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	c := NewSeatCache(client, 30*time.Second)
	key := "m-1:2024-03-20:7:00 PM"

	t.Run("miss", func(t *testing.T) {
		_, err := c.Get(ctx, key)
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, key, 0, []int{1, 2, 3}))
		seats, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, seats)
	})

	t.Run("empty list is cached as empty", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "other", 0, nil))
		seats, err := c.Get(ctx, "other")
		require.NoError(t, err)
		assert.Empty(t, seats)
	})

	t.Run("entries expire", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, key, 0, []int{4}))
		mr.FastForward(31 * time.Second)
		_, err := c.Get(ctx, key)
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("invalidate", func(t *testing.T) {
		gen, err := c.Generation(ctx, key)
		require.NoError(t, err)
		require.NoError(t, c.Set(ctx, key, gen, []int{4}))
		require.NoError(t, c.Invalidate(ctx, key))
		_, err = c.Get(ctx, key)
		assert.ErrorIs(t, err, ErrCacheMiss)

		next, err := c.Generation(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, gen+1, next)
	})

	t.Run("write from before an invalidation is dropped", func(t *testing.T) {
		k := "m-1:2024-03-20:10:00 AM"
		gen, err := c.Generation(ctx, k)
		require.NoError(t, err)

		// a cancel lands while the reader is still querying the database
		require.NoError(t, c.Invalidate(ctx, k))

		require.NoError(t, c.Set(ctx, k, gen, []int{1, 2}))
		_, err = c.Get(ctx, k)
		assert.ErrorIs(t, err, ErrCacheMiss)

		gen, err = c.Generation(ctx, k)
		require.NoError(t, err)
		require.NoError(t, c.Set(ctx, k, gen, []int{}))
		seats, err := c.Get(ctx, k)
		require.NoError(t, err)
		assert.Empty(t, seats)
	})

	t.Run("generation outlives the seat entry", func(t *testing.T) {
		k := "m-2:2024-03-20:10:00 AM"
		require.NoError(t, c.Invalidate(ctx, k))
		mr.FastForward(time.Minute)
		gen, err := c.Generation(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, int64(1), gen)
	})

	t.Run("corrupt entry counts as miss", func(t *testing.T) {
		require.NoError(t, mr.Set("seats:booked:bad", "{not json"))
		_, err := c.Get(ctx, "bad")
		assert.ErrorIs(t, err, ErrCacheMiss)
		assert.False(t, mr.Exists("seats:booked:bad"))
	})
}

func TestLockManager(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	m := NewLockManager(client, 5*time.Second, 3, 10*time.Millisecond)

	t.Run("same key cannot be locked twice", func(t *testing.T) {
		l1, err := m.AcquireLock(ctx, "k1", 5*time.Second)
		require.NoError(t, err)
		defer l1.Release(ctx)

		l2, err := m.AcquireLock(ctx, "k1", 5*time.Second)
		assert.ErrorIs(t, err, ErrLockNotAcquired)
		assert.Nil(t, l2)
	})

	t.Run("released lock can be taken again", func(t *testing.T) {
		l1, err := m.AcquireLock(ctx, "k2", 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, l1.Release(ctx))

		l2, err := m.AcquireLock(ctx, "k2", 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, l2.Release(ctx))
	})

	t.Run("gives up without waiting after the last attempt", func(t *testing.T) {
		held, err := m.AcquireLock(ctx, "k4", 5*time.Second)
		require.NoError(t, err)
		defer held.Release(ctx)

		start := time.Now()
		l, err := m.AcquireLockWithRetry(ctx, "k4", 5*time.Second, 1, time.Second)
		assert.ErrorIs(t, err, ErrLockNotAcquired)
		assert.Nil(t, l)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("expired lock is not released by the old owner", func(t *testing.T) {
		l1, err := m.AcquireLock(ctx, "k3", time.Second)
		require.NoError(t, err)
		mr.FastForward(2 * time.Second)

		l2, err := m.AcquireLock(ctx, "k3", 5*time.Second)
		require.NoError(t, err)

		assert.ErrorIs(t, l1.Release(ctx), ErrLockNotOwned)
		assert.True(t, mr.Exists("lock:k3"))
		require.NoError(t, l2.Release(ctx))
	})

	t.Run("retry gives up after the configured attempts", func(t *testing.T) {
		l1, err := m.AcquireLock(ctx, "k4", 5*time.Second)
		require.NoError(t, err)
		defer l1.Release(ctx)

		_, err = m.Acquire(ctx, "k4")
		assert.ErrorIs(t, err, ErrLockNotAcquired)
	})

	t.Run("retry succeeds once the holder releases", func(t *testing.T) {
		l1, err := m.AcquireLock(ctx, "k5", 5*time.Second)
		require.NoError(t, err)

		go func() {
			time.Sleep(5 * time.Millisecond)
			_ = l1.Release(ctx)
		}()

		l2, err := m.AcquireLockWithRetry(ctx, "k5", 5*time.Second, 50, 5*time.Millisecond)
		require.NoError(t, err)
		require.NoError(t, l2.Release(ctx))
	})

	t.Run("Acquire returns a working release func", func(t *testing.T) {
		release, err := m.Acquire(ctx, "k6")
		require.NoError(t, err)
		assert.True(t, mr.Exists("lock:k6"))
		release()
		assert.False(t, mr.Exists("lock:k6"))
	})
}
