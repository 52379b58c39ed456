package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-ticket-booking/internal/cache"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// pausingStore holds the next ActiveSeats call after it has read, until
// release is closed.
type pausingStore struct {
	*memStore
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func newPausingStore() *pausingStore {
	return &pausingStore{
		memStore: newMemStore(),
		read:     make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (p *pausingStore) ActiveSeats(ctx context.Context, movieID string, day time.Time, label string) ([]int, error) {
	seats, err := p.memStore.ActiveSeats(ctx, movieID, day, label)
	if p.armed.CompareAndSwap(true, false) {
		close(p.read)
		<-p.release
	}
	return seats, err
}

func newRedisSeatCache(t *testing.T) *cache.SeatCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewSeatCache(client, 30*time.Second)
}

func TestBookedSeats_CancelDuringCacheFill(t *testing.T) {
	ctx := context.Background()
	store := newPausingStore()
	svc := newTestService(store, WithSeatCache(newRedisSeatCache(t)))

	b := reserveOne(t, svc)

	store.armed.Store(true)
	type result struct {
		seats []int
		err   error
	}
	done := make(chan result, 1)
	go func() {
		seats, err := svc.BookedSeats(ctx, "movie-m", "2024-03-20", "10:00 AM")
		done <- result{seats, err}
	}()

	select {
	case <-store.read:
	case <-time.After(2 * time.Second):
		t.Fatal("availability read did not start")
	}
	cancelled, err := svc.UpdateStatus(ctx, b.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	close(store.release)

	first := <-done
	require.NoError(t, first.err)
	assert.Equal(t, []int{1, 2}, first.seats)

	seats, err := svc.BookedSeats(ctx, "movie-m", "2024-03-20", "10:00 AM")
	require.NoError(t, err)
	assert.Empty(t, seats, "cancelled seats must not be served from the cache")
}

func TestBookedSeats_CacheServesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestService(store, WithSeatCache(newRedisSeatCache(t)))

	b := reserveOne(t, svc)
	seats, err := svc.BookedSeats(ctx, "movie-m", "2024-03-20", "10:00 AM")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seats)

	_, err = svc.Pay(ctx, PayInput{BookingID: b.ID, UserID: "user-a", Amount: b.TotalAmount, Method: "card"})
	require.NoError(t, err)
	seats, err = svc.BookedSeats(ctx, "movie-m", "2024-03-20", "10:00 AM")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seats)

	_, err = svc.UpdateStatus(ctx, b.ID, "cancelled")
	require.NoError(t, err)
	seats, err = svc.BookedSeats(ctx, "movie-m", "2024-03-20", "10:00 AM")
	require.NoError(t, err)
	assert.Empty(t, seats)
}
