// Package queue defines the booking events exchanged over RabbitMQ, their
// publisher and the consumer that appends them to the booking log.
package queue

import (
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// EventType doubles as the name of the durable queue the event goes to.
type EventType string

const (
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
)

// Queues lists every queue the publisher writes to.
var Queues = []EventType{EventBookingConfirmed, EventBookingCancelled}

// BookingEvent carries enough of the booking for downstream consumers to
// log or notify without reading the database.
type BookingEvent struct {
	Type             EventType `json:"type"`
	BookingID        string    `json:"booking_id"`
	UserID           string    `json:"user_id"`
	MovieID          string    `json:"movie_id"`
	MovieTitle       string    `json:"movie_title,omitempty"`
	ShowDate         string    `json:"show_date"`
	ShowTime         string    `json:"show_time"`
	Seats            []int     `json:"seats"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	PaymentMethod    string    `json:"payment_method,omitempty"`
	OccurredAt       string    `json:"occurred_at"`
}

// NewBookingEvent snapshots b for an event of type t.
func NewBookingEvent(t EventType, b *model.Booking, at time.Time) BookingEvent {
	ev := BookingEvent{
		Type:             t,
		BookingID:        b.ID,
		UserID:           b.UserID,
		MovieID:          b.MovieID,
		MovieTitle:       b.MovieTitle,
		ShowDate:         b.Showtime.Day().Format(time.DateOnly),
		ShowTime:         b.Showtime.Time,
		Seats:            append([]int(nil), b.Seats...),
		TotalAmountCents: int64(b.TotalAmount),
		OccurredAt:       at.UTC().Format(time.RFC3339),
	}
	if b.PaymentMethod != nil {
		ev.PaymentMethod = *b.PaymentMethod
	}
	return ev
}
