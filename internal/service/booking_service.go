package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-ticket-booking/internal/cache"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/pkg/logger"
	"github.com/iliyamo/movie-ticket-booking/internal/pkg/metrics"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// BookingStore is the persistence the booking flow needs. Create is the
// only writer that can claim seats and must reject overlapping active
// bookings atomically with *repository.SeatConflictError.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ActiveSeats(ctx context.Context, movieID string, day time.Time, label string) ([]int, error)
	ListByUser(ctx context.Context, userID string) ([]model.Booking, error)
	ListAll(ctx context.Context) ([]model.BookingView, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]model.Booking, error)
	UpdateStatus(ctx context.Context, b *model.Booking, next model.BookingStatus, pay *model.Payment, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// MovieCatalog resolves movies; a missing movie is repository.ErrMovieNotFound.
type MovieCatalog interface {
	GetByID(ctx context.Context, id string) (*model.Movie, error)
}

// SeatCache caches booked seats per showtime key; a miss is cache.ErrCacheMiss.
// Set must drop the write when key was invalidated after gen was read from
// Generation.
type SeatCache interface {
	Get(ctx context.Context, key string) ([]int, error)
	Generation(ctx context.Context, key string) (int64, error)
	Set(ctx context.Context, key string, gen int64, seats []int) error
	Invalidate(ctx context.Context, key string) error
}

// ShowtimeLocker serialises reservations of one showtime across instances.
type ShowtimeLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

const staleBatchSize = 100

// BookingService implements availability, reservation and the booking
// lifecycle.
type BookingService struct {
	bookings       BookingStore
	movies         MovieCatalog
	seatCache      SeatCache
	locker         ShowtimeLocker
	publisher      EventPublisher
	publishTimeout time.Duration
	metrics        *metrics.Metrics
	maxSeats       int
	now            func() time.Time
}

type Option func(*BookingService)

func WithSeatCache(c SeatCache) Option { return func(s *BookingService) { s.seatCache = c } }

func WithShowtimeLocker(l ShowtimeLocker) Option { return func(s *BookingService) { s.locker = l } }

func WithPublisher(p EventPublisher, timeout time.Duration) Option {
	return func(s *BookingService) {
		s.publisher = p
		if timeout > 0 {
			s.publishTimeout = timeout
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(s *BookingService) { s.metrics = m } }

// WithMaxSeats caps the seats of one reservation; 0 means no cap.
func WithMaxSeats(n int) Option { return func(s *BookingService) { s.maxSeats = n } }

func WithClock(now func() time.Time) Option { return func(s *BookingService) { s.now = now } }

func NewBookingService(bookings BookingStore, movies MovieCatalog, opts ...Option) *BookingService {
	if bookings == nil || movies == nil {
		panic("nil store passed to NewBookingService")
	}
	s := &BookingService{
		bookings:       bookings,
		movies:         movies,
		publishTimeout: 3 * time.Second,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReserveInput is a reservation request. ClaimedTotal is what the client
// computed; the stored total is always recomputed from the movie price.
type ReserveInput struct {
	UserID       string
	MovieID      string
	Date         string
	Time         string
	Seats        []int
	ClaimedTotal model.Cents
}

type PayInput struct {
	BookingID string
	UserID    string
	Amount    model.Cents
	Method    string
}

func showtimeKey(movieID string, day time.Time, label string) string {
	return movieID + ":" + model.DayOf(day).Format(time.DateOnly) + ":" + label
}

// BookedSeats returns the occupied seats of a showtime, ascending. It fails
// with NotFound when the movie does not exist.
func (s *BookingService) BookedSeats(ctx context.Context, movieID, date, label string) ([]int, error) {
	movieID = strings.TrimSpace(movieID)
	label = model.NormalizeTimeLabel(label)
	if movieID == "" || strings.TrimSpace(date) == "" || label == "" {
		return nil, InvalidArgument("movie id, date and time are required")
	}
	day, err := model.ParseShowDate(date)
	if err != nil {
		return nil, InvalidArgument("invalid showtime date %q", date)
	}
	if _, err := s.movies.GetByID(ctx, movieID); err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return nil, NotFound("movie not found")
		}
		return nil, Internal("error fetching movie", err)
	}
	seats, err := s.occupiedSeats(ctx, movieID, day, label, true)
	if err != nil {
		return nil, Internal("error fetching booked seats", err)
	}
	return seats, nil
}

// occupiedSeats is the availability calculation: the union of the seats of
// all active bookings of the showtime. It never writes to the store.
func (s *BookingService) occupiedSeats(ctx context.Context, movieID string, day time.Time, label string, useCache bool) ([]int, error) {
	key := showtimeKey(movieID, day, label)
	fill := false
	var gen int64
	if useCache && s.seatCache != nil {
		seats, err := s.seatCache.Get(ctx, key)
		if err == nil {
			return seats, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn("booked seats cache read failed", zap.String("key", key), zap.Error(err))
		}
		// the generation must be taken before the store read
		if gen, err = s.seatCache.Generation(ctx, key); err != nil {
			logger.Warn("booked seats cache generation read failed", zap.String("key", key), zap.Error(err))
		} else {
			fill = true
		}
	}
	seats, err := s.bookings.ActiveSeats(ctx, movieID, day, label)
	if err != nil {
		return nil, err
	}
	seats = model.UnionSeats(seats)
	if fill {
		if err := s.seatCache.Set(ctx, key, gen, seats); err != nil {
			logger.Warn("booked seats cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return seats, nil
}

func (s *BookingService) invalidate(ctx context.Context, b *model.Booking) {
	if s.seatCache == nil {
		return
	}
	key := showtimeKey(b.MovieID, b.Showtime.Day(), b.Showtime.Time)
	if err := s.seatCache.Invalidate(context.WithoutCancel(ctx), key); err != nil {
		logger.Warn("booked seats cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

// Reserve validates the request and creates a pending booking. Checks run
// in order: request shape, movie, showtime and capacity, seat conflicts.
func (s *BookingService) Reserve(ctx context.Context, in ReserveInput) (*model.Booking, error) {
	b, err := s.reserve(ctx, in)
	switch KindOf(err) {
	case KindInvalidArgument:
		s.metrics.ObserveReservation("invalid")
	case KindNotFound:
		s.metrics.ObserveReservation("not_found")
	case KindConflict:
		s.metrics.ObserveReservation("conflict")
	default:
		if err != nil {
			s.metrics.ObserveReservation("error")
		} else {
			s.metrics.ObserveReservation("created")
		}
	}
	return b, err
}

func (s *BookingService) reserve(ctx context.Context, in ReserveInput) (*model.Booking, error) {
	userID := strings.TrimSpace(in.UserID)
	movieID := strings.TrimSpace(in.MovieID)
	label := model.NormalizeTimeLabel(in.Time)
	if userID == "" || movieID == "" || strings.TrimSpace(in.Date) == "" || label == "" {
		return nil, InvalidArgument("user, movie, showtime date and time are required")
	}
	seats, err := model.NormalizeSeats(in.Seats)
	if err != nil {
		return nil, InvalidArgument("%s", err.Error())
	}
	if s.maxSeats > 0 && len(seats) > s.maxSeats {
		return nil, InvalidArgument("at most %d seats can be booked at once", s.maxSeats)
	}
	if in.ClaimedTotal <= 0 {
		return nil, InvalidArgument("total amount must be positive")
	}
	showDate, err := model.ParseShowDate(in.Date)
	if err != nil {
		return nil, InvalidArgument("invalid showtime date %q", in.Date)
	}

	movie, err := s.movies.GetByID(ctx, movieID)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return nil, NotFound("movie not found")
		}
		return nil, Internal("error fetching movie", err)
	}
	st, ok := movie.FindShowtime(showDate, label)
	if !ok {
		return nil, NotFound("showtime not found")
	}
	if last := seats[len(seats)-1]; last > st.Seats {
		return nil, InvalidArgument("seat %d exceeds showtime capacity of %d", last, st.Seats)
	}

	day := model.DayOf(showDate)
	if release := s.lockShowtime(ctx, showtimeKey(movie.ID, day, label)); release != nil {
		defer release()
	}

	occupied, err := s.occupiedSeats(ctx, movie.ID, day, label, false)
	if err != nil {
		return nil, Internal("error checking seat availability", err)
	}
	if taken := model.IntersectSeats(seats, occupied); len(taken) > 0 {
		return nil, SeatConflict(taken)
	}

	total := model.Cents(len(seats)) * movie.Price
	if total != in.ClaimedTotal {
		logger.Warn("client total differs from server total",
			zap.String("movie_id", movie.ID),
			zap.Int64("claimed_cents", int64(in.ClaimedTotal)),
			zap.Int64("total_cents", int64(total)),
		)
	}

	now := s.now()
	b := &model.Booking{
		ID:          uuid.NewString(),
		UserID:      userID,
		MovieID:     movie.ID,
		MovieTitle:  movie.Title,
		Showtime:    model.Showtime{Date: showDate, Time: label},
		Seats:       seats,
		TotalAmount: total,
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		var conflict *repository.SeatConflictError
		if errors.As(err, &conflict) {
			s.invalidate(ctx, b)
			return nil, SeatConflict(conflict.Seats)
		}
		return nil, Internal("error in creating booking", err)
	}
	s.invalidate(ctx, b)

	logger.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("user_id", b.UserID),
		zap.String("movie_id", b.MovieID),
		zap.Ints("seats", b.Seats),
	)
	return b, nil
}

// lockShowtime takes the showtime lock when a locker is configured. A
// failure is logged and the reservation goes on: the store still rejects
// overlapping bookings.
func (s *BookingService) lockShowtime(ctx context.Context, key string) func() {
	if s.locker == nil {
		return nil
	}
	start := time.Now()
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		s.metrics.ObserveLockWait("skipped", time.Since(start).Seconds())
		logger.Warn("showtime lock not acquired, relying on store", zap.String("key", key), zap.Error(err))
		return nil
	}
	s.metrics.ObserveLockWait("acquired", time.Since(start).Seconds())
	return release
}

// ListForUser returns the caller's bookings, newest first.
func (s *BookingService) ListForUser(ctx context.Context, userID string) ([]model.Booking, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, InvalidArgument("user id is required")
	}
	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, Internal("error fetching bookings", err)
	}
	return bookings, nil
}

// ListAll returns every booking with user and movie resolved. Callers
// restrict it to admins.
func (s *BookingService) ListAll(ctx context.Context) ([]model.BookingView, error) {
	views, err := s.bookings.ListAll(ctx)
	if err != nil {
		return nil, Internal("error fetching bookings", err)
	}
	return views, nil
}

// Get returns one booking to its owner or an admin.
func (s *BookingService) Get(ctx context.Context, id string, who model.Principal) (*model.Booking, error) {
	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.IsAdmin() && b.UserID != who.UserID {
		return nil, Forbidden("not authorized to view this booking")
	}
	return b, nil
}

func (s *BookingService) find(ctx context.Context, id string) (*model.Booking, error) {
	if strings.TrimSpace(id) == "" {
		return nil, InvalidArgument("booking id is required")
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, NotFound("booking not found")
		}
		return nil, Internal("error fetching booking", err)
	}
	return b, nil
}

// Pay records a simulated payment and confirms the booking. No gateway is
// contacted.
func (s *BookingService) Pay(ctx context.Context, in PayInput) (*model.Booking, error) {
	b, err := s.find(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != in.UserID {
		return nil, Forbidden("not authorized to process this payment")
	}
	if in.Amount != b.TotalAmount {
		return nil, InvalidArgument("payment amount %s does not match booking total %s", in.Amount, b.TotalAmount)
	}
	method := strings.TrimSpace(in.Method)
	if method == "" {
		return nil, InvalidArgument("payment method is required")
	}
	if b.Status != model.StatusPending {
		return nil, InvalidState("cannot pay for a %s booking", b.Status)
	}

	now := s.now()
	if err := s.bookings.UpdateStatus(ctx, b, model.StatusConfirmed, &model.Payment{Method: method, Date: now}, now); err != nil {
		return nil, s.updateError(err)
	}
	s.metrics.ObserveTransition(string(model.StatusConfirmed))
	logger.Info("booking paid", zap.String("booking_id", b.ID), zap.String("method", method))
	s.publish(ctx, queue.EventBookingConfirmed, b)
	return b, nil
}

// UpdateStatus is the admin status change. Re-applying the current status
// is a no-op; anything outside the lifecycle is InvalidState.
func (s *BookingService) UpdateStatus(ctx context.Context, id, status string) (*model.Booking, error) {
	next, ok := model.ParseBookingStatus(status)
	if !ok {
		return nil, InvalidArgument("invalid status %q", status)
	}
	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == next {
		return b, nil
	}
	if !b.Status.CanTransitionTo(next) {
		return nil, InvalidState("cannot change booking status from %s to %s", b.Status, next)
	}
	if err := s.bookings.UpdateStatus(ctx, b, next, nil, s.now()); err != nil {
		return nil, s.updateError(err)
	}
	s.afterTransition(ctx, b)
	return b, nil
}

func (s *BookingService) afterTransition(ctx context.Context, b *model.Booking) {
	s.metrics.ObserveTransition(string(b.Status))
	logger.Info("booking status changed", zap.String("booking_id", b.ID), zap.String("status", string(b.Status)))
	switch b.Status {
	case model.StatusConfirmed:
		s.publish(ctx, queue.EventBookingConfirmed, b)
	case model.StatusCancelled:
		s.invalidate(ctx, b)
		s.publish(ctx, queue.EventBookingCancelled, b)
	}
}

func (s *BookingService) updateError(err error) error {
	if errors.Is(err, repository.ErrStaleBooking) {
		return Conflict("booking was modified concurrently")
	}
	return Internal("error updating booking", err)
}

// Delete removes a booking that is not confirmed, releasing its seats.
func (s *BookingService) Delete(ctx context.Context, id string) error {
	b, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if b.Status == model.StatusConfirmed {
		return InvalidState("cannot delete confirmed booking")
	}
	if err := s.bookings.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrBookingNotFound):
			return NotFound("booking not found")
		case errors.Is(err, repository.ErrBookingConfirmed):
			return InvalidState("cannot delete confirmed booking")
		}
		return Internal("error deleting booking", err)
	}
	if b.Status.IsActive() {
		s.invalidate(ctx, b)
	}
	logger.Info("booking deleted", zap.String("booking_id", b.ID))
	return nil
}

// CancelStalePending cancels pending bookings created more than olderThan
// ago and returns how many were cancelled. Bookings changed concurrently
// are skipped.
func (s *BookingService) CancelStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	cancelled := 0
	for {
		stale, err := s.bookings.ListStalePending(ctx, cutoff, staleBatchSize)
		if err != nil {
			return cancelled, Internal("error listing stale bookings", err)
		}
		progressed := 0
		for i := range stale {
			b := &stale[i]
			err := s.bookings.UpdateStatus(ctx, b, model.StatusCancelled, nil, s.now())
			if errors.Is(err, repository.ErrStaleBooking) {
				continue
			}
			if err != nil {
				return cancelled, Internal("error cancelling stale booking", err)
			}
			progressed++
			s.afterTransition(ctx, b)
		}
		cancelled += progressed
		if len(stale) < staleBatchSize || progressed == 0 {
			return cancelled, nil
		}
	}
}

func (s *BookingService) publish(ctx context.Context, t queue.EventType, b *model.Booking) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, queue.NewBookingEvent(t, b, s.now())); err != nil {
		logger.Warn("booking event not published",
			zap.String("type", string(t)),
			zap.String("booking_id", b.ID),
			zap.Error(err),
		)
	}
}
