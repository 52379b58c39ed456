package handler

import (
	"context"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

// BookingServiceInterface is what the booking routes need from
// service.BookingService.
type BookingServiceInterface interface {
	BookedSeats(ctx context.Context, movieID, date, label string) ([]int, error)
	Reserve(ctx context.Context, in service.ReserveInput) (*model.Booking, error)
	ListForUser(ctx context.Context, userID string) ([]model.Booking, error)
	ListAll(ctx context.Context) ([]model.BookingView, error)
	Get(ctx context.Context, id string, who model.Principal) (*model.Booking, error)
	Pay(ctx context.Context, in service.PayInput) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id, status string) (*model.Booking, error)
	Delete(ctx context.Context, id string) error
}

// MovieReader is the read side of the movie catalog.
type MovieReader interface {
	GetByID(ctx context.Context, id string) (*model.Movie, error)
	List(ctx context.Context) ([]model.Movie, error)
	Search(ctx context.Context, term string) ([]model.Movie, error)
}

// Pinger reports whether a dependency is reachable; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}
