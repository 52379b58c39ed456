package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// ParseBookingStatus accepts the three lifecycle values, case-insensitively.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, true
	case StatusConfirmed:
		return StatusConfirmed, true
	case StatusCancelled:
		return StatusCancelled, true
	}
	return "", false
}

// ActiveStatuses hold seats.
var ActiveStatuses = []BookingStatus{StatusPending, StatusConfirmed}

// IsActive reports whether a booking in this status occupies its seats.
func (s BookingStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanTransitionTo reports whether s -> next is a legal lifecycle move.
// Cancelled is terminal and confirmed never goes back to pending.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCancelled
	}
	return false
}

// Showtime is the (date, time label) snapshot copied onto a booking.
type Showtime struct {
	Date time.Time `json:"date"`
	Time string    `json:"time"`
}

// Day returns the UTC calendar day of the showtime.
func (s Showtime) Day() time.Time { return DayOf(s.Date) }

// Payment is the record written when a booking is paid.
type Payment struct {
	Method string
	Date   time.Time
}

// Booking is a user's claim on seats of one showtime.
type Booking struct {
	ID            string        `json:"id"`                      // bookings.id (uuid)
	UserID        string        `json:"user"`                    // bookings.user_id
	MovieID       string        `json:"movie"`                   // bookings.movie_id
	MovieTitle    string        `json:"movieTitle,omitempty"`    // joined from movies, "N/A" when gone
	Showtime      Showtime      `json:"showtime"`                // bookings.showtime_date / showtime_time
	Seats         []int         `json:"seats"`                   // bookings.seats, ascending
	TotalAmount   Cents         `json:"totalAmount"`             // bookings.total_amount_cents
	Status        BookingStatus `json:"status"`                  // bookings.status
	PaymentMethod *string       `json:"paymentMethod,omitempty"` // bookings.payment_method (nullable)
	PaymentDate   *time.Time    `json:"paymentDate,omitempty"`   // bookings.payment_date (nullable)
	Version       uint32        `json:"-"`                       // bookings.version
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// UserSummary and MovieSummary are the joined parts of an admin listing.
type UserSummary struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type MovieSummary struct {
	Title string `json:"title"`
}

// BookingView is a booking with its user and movie resolved for admins.
type BookingView struct {
	ID            string        `json:"id"`
	User          UserSummary   `json:"user"`
	Movie         MovieSummary  `json:"movie"`
	Showtime      Showtime      `json:"showtime"`
	Seats         []int         `json:"seats"`
	TotalAmount   Cents         `json:"totalAmount"`
	Status        BookingStatus `json:"status"`
	PaymentMethod *string       `json:"paymentMethod,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// NormalizeSeats validates a requested seat list and returns a sorted copy.
// Seats must be non-empty, positive and unique.
func NormalizeSeats(seats []int) ([]int, error) {
	if len(seats) == 0 {
		return nil, fmt.Errorf("at least one seat is required")
	}
	out := make([]int, len(seats))
	copy(out, seats)
	sort.Ints(out)
	for i, s := range out {
		if s <= 0 {
			return nil, fmt.Errorf("invalid seat number %d", s)
		}
		if i > 0 && out[i-1] == s {
			return nil, fmt.Errorf("duplicate seat %d", s)
		}
	}
	return out, nil
}

// UnionSeats merges seat lists into one sorted list without duplicates.
func UnionSeats(lists ...[]int) []int {
	seen := make(map[int]struct{})
	out := make([]int, 0)
	for _, l := range lists {
		for _, s := range l {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Ints(out)
	return out
}

// IntersectSeats returns the seats of want that are present in taken,
// ascending.
func IntersectSeats(want, taken []int) []int {
	set := make(map[int]struct{}, len(taken))
	for _, s := range taken {
		set[s] = struct{}{}
	}
	out := make([]int, 0)
	for _, s := range want {
		if _, ok := set[s]; ok {
			out = append(out, s)
		}
	}
	sort.Ints(out)
	return out
}
