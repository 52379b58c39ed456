package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// A books [1,2], B tries [2,3] and loses on seat 2 without taking seat 3,
// A pays, an admin cancels and the seats come back.
func TestScenario_BookPayCancel(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestService(store)

	a, err := svc.Reserve(ctx, ReserveInput{
		UserID: "user-a", MovieID: "movie-m", Date: "2024-03-20", Time: "10:00 AM",
		Seats: []int{1, 2}, ClaimedTotal: model.CentsFromAmount(25.98),
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, a.Status)

	_, err = svc.Reserve(ctx, ReserveInput{
		UserID: "user-b", MovieID: "movie-m", Date: "2024-03-20", Time: "10:00 AM",
		Seats: []int{2, 3}, ClaimedTotal: model.CentsFromAmount(25.98),
	})
	assertKind(t, err, KindConflict)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []int{2}, se.Seats)

	seats, err := svc.BookedSeats(ctx, "movie-m", "2024-03-20", "10:00 AM")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seats, "seat 3 must stay free")

	paid, err := svc.Pay(ctx, PayInput{BookingID: a.ID, UserID: "user-a", Amount: model.CentsFromAmount(25.98), Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, paid.Status)

	_, err = svc.UpdateStatus(ctx, a.ID, "cancelled")
	require.NoError(t, err)

	seats, err = svc.BookedSeats(ctx, "movie-m", "2024-03-20", "10:00 AM")
	require.NoError(t, err)
	assert.Empty(t, seats)

	b, err := svc.Reserve(ctx, ReserveInput{
		UserID: "user-b", MovieID: "movie-m", Date: "2024-03-20", Time: "10:00 AM",
		Seats: []int{2, 3}, ClaimedTotal: model.CentsFromAmount(25.98),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, b.Seats)
}

func TestConcurrentOverlappingReservations(t *testing.T) {
	for round := 0; round < 50; round++ {
		svc := newTestService(newMemStore())
		ctx := context.Background()

		requests := [][]int{{1, 2}, {2, 3}}
		errs := make([]error, len(requests))
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i, seats := range requests {
			wg.Add(1)
			go func(i int, seats []int) {
				defer wg.Done()
				<-start
				_, errs[i] = svc.Reserve(ctx, ReserveInput{
					UserID: fmt.Sprintf("user-%d", i), MovieID: "movie-m", Date: "2024-03-20", Time: "10:00 AM",
					Seats: seats, ClaimedTotal: 2598,
				})
			}(i, seats)
		}
		close(start)
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assertKind(t, err, KindConflict)
			var se *Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, []int{2}, se.Seats)
		}
		require.Equal(t, 1, wins, "round %d", round)

		seats, err := svc.BookedSeats(ctx, "movie-m", "2024-03-20", "10:00 AM")
		require.NoError(t, err)
		assert.Len(t, seats, 2)
		assert.Contains(t, seats, 2)
	}
}

func TestConcurrentReservationsOfOneSeat(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	const n = 20
	results := make(chan error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.Reserve(ctx, ReserveInput{
				UserID: fmt.Sprintf("user-%d", i), MovieID: "movie-m", Date: "2024-03-20", Time: "7:00 PM",
				Seats: []int{5}, ClaimedTotal: 1299,
			})
			results <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			assertKind(t, err, KindConflict)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, store.bookings, 1)
}
