package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// memStore is an in-memory BookingStore with the same seat-claim rule as
// the MySQL schema: one claim per (movie, day, time, seat).
type memStore struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
	claims   map[claimKey]string
	users    map[string]model.UserSummary
}

type claimKey struct {
	movieID string
	day     string
	label   string
	seat    int
}

func newMemStore() *memStore {
	return &memStore{
		bookings: make(map[string]*model.Booking),
		claims:   make(map[claimKey]string),
		users:    make(map[string]model.UserSummary),
	}
}

func cloneBooking(b *model.Booking) *model.Booking {
	cp := *b
	cp.Seats = append([]int(nil), b.Seats...)
	if b.PaymentMethod != nil {
		m := *b.PaymentMethod
		cp.PaymentMethod = &m
	}
	if b.PaymentDate != nil {
		d := *b.PaymentDate
		cp.PaymentDate = &d
	}
	return &cp
}

func keyFor(b *model.Booking, seat int) claimKey {
	return claimKey{b.MovieID, b.Showtime.Day().Format(time.DateOnly), b.Showtime.Time, seat}
}

func (m *memStore) Create(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var taken []int
	for _, s := range b.Seats {
		if _, ok := m.claims[keyFor(b, s)]; ok {
			taken = append(taken, s)
		}
	}
	if len(taken) > 0 {
		return &repository.SeatConflictError{Seats: taken}
	}
	for _, s := range b.Seats {
		m.claims[keyFor(b, s)] = b.ID
	}
	m.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (m *memStore) ActiveSeats(_ context.Context, movieID string, day time.Time, label string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var lists [][]int
	for _, b := range m.bookings {
		if b.MovieID == movieID && b.Showtime.Day().Equal(model.DayOf(day)) && b.Showtime.Time == label && b.Status.IsActive() {
			lists = append(lists, b.Seats)
		}
	}
	return model.UnionSeats(lists...), nil
}

func (m *memStore) sorted(filter func(*model.Booking) bool) []*model.Booking {
	var out []*model.Booking
	for _, b := range m.bookings {
		if filter(b) {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) ListByUser(_ context.Context, userID string) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range m.sorted(func(b *model.Booking) bool { return b.UserID == userID }) {
		out = append(out, *b)
	}
	return out, nil
}

func (m *memStore) ListAll(_ context.Context) ([]model.BookingView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.BookingView, 0)
	for _, b := range m.sorted(func(*model.Booking) bool { return true }) {
		u, ok := m.users[b.UserID]
		if !ok {
			u = model.UserSummary{Name: "N/A", Email: "N/A"}
		}
		out = append(out, model.BookingView{
			ID: b.ID, User: u, Movie: model.MovieSummary{Title: b.MovieTitle},
			Showtime: b.Showtime, Seats: b.Seats, TotalAmount: b.TotalAmount, Status: b.Status,
			CreatedAt: b.CreatedAt,
		})
	}
	return out, nil
}

func (m *memStore) ListStalePending(_ context.Context, createdBefore time.Time, limit int) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range m.sorted(func(b *model.Booking) bool {
		return b.Status == model.StatusPending && b.CreatedAt.Before(createdBefore)
	}) {
		if len(out) == limit {
			break
		}
		out = append(out, *b)
	}
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, b *model.Booking, next model.BookingStatus, pay *model.Payment, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.bookings[b.ID]
	if !ok || stored.Version != b.Version {
		return repository.ErrStaleBooking
	}
	stored.Status = next
	stored.Version++
	stored.UpdatedAt = at
	if pay != nil {
		method, date := pay.Method, pay.Date
		stored.PaymentMethod = &method
		stored.PaymentDate = &date
	}
	if !next.IsActive() {
		m.releaseLocked(stored)
	}
	*b = *cloneBooking(stored)
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	if b.Status == model.StatusConfirmed {
		return repository.ErrBookingConfirmed
	}
	m.releaseLocked(b)
	delete(m.bookings, id)
	return nil
}

func (m *memStore) releaseLocked(b *model.Booking) {
	for _, s := range b.Seats {
		k := keyFor(b, s)
		if m.claims[k] == b.ID {
			delete(m.claims, k)
		}
	}
}

// ageBooking moves a booking's creation time back, for stale sweeps.
func (m *memStore) ageBooking(id string, by time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[id].CreatedAt = m.bookings[id].CreatedAt.Add(-by)
}

type fakeCatalog struct {
	movies map[string]*model.Movie
	err    error
}

func (f *fakeCatalog) GetByID(_ context.Context, id string) (*model.Movie, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.movies[id]
	if !ok {
		return nil, repository.ErrMovieNotFound
	}
	cp := *m
	return &cp, nil
}

var showDay = time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

func newCatalog() *fakeCatalog {
	return &fakeCatalog{movies: map[string]*model.Movie{
		"movie-m": {
			ID:    "movie-m",
			Title: "Movie M",
			Price: model.CentsFromAmount(12.99),
			Showtimes: []model.MovieShowtime{
				{Date: showDay, Time: "10:00 AM", Seats: 100},
				{Date: showDay, Time: "7:00 PM", Seats: 10},
			},
		},
	}}
}
