package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// BookingRepo stores bookings and the per-seat claim rows that keep two
// active bookings of one showtime from sharing a seat. All timestamps are
// UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const createAttempts = 3

const bookingColumns = `b.id, b.user_id, b.movie_id, b.showtime_date, b.showtime_time, b.seats,
	b.total_amount_cents, b.status, b.payment_method, b.payment_date, b.version,
	b.created_at, b.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanBooking reads bookingColumns followed by any extra destinations.
func scanBooking(s rowScanner, extra ...any) (*model.Booking, error) {
	var (
		b      model.Booking
		seats  []byte
		status string
		method sql.NullString
		paidAt sql.NullTime
	)
	dest := []any{
		&b.ID, &b.UserID, &b.MovieID, &b.Showtime.Date, &b.Showtime.Time, &seats,
		&b.TotalAmount, &status, &method, &paidAt, &b.Version,
		&b.CreatedAt, &b.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(seats, &b.Seats); err != nil {
		return nil, fmt.Errorf("decode seats of booking %s: %w", b.ID, err)
	}
	b.Status = model.BookingStatus(status)
	if method.Valid {
		m := method.String
		b.PaymentMethod = &m
	}
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		b.PaymentDate = &t
	}
	b.Showtime.Date = b.Showtime.Date.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

// Create inserts the booking and claims its seats in one transaction. If
// any seat is already claimed for the showtime nothing is written and a
// *SeatConflictError names the taken seats. b.Seats must be sorted
// ascending so concurrent inserts lock claim rows in the same order.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		err = r.create(ctx, b)
		if !isRetryable(err) {
			return err
		}
	}
	return err
}

func (r *BookingRepo) create(ctx context.Context, b *model.Booking) error {
	seatsJSON, err := json.Marshal(b.Seats)
	if err != nil {
		return err
	}
	day := b.Showtime.Day().Format(time.DateOnly)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	taken, err := claimedSeatsTx(ctx, tx, b.MovieID, day, b.Showtime.Time, b.Seats, false)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return &SeatConflictError{Seats: taken}
	}

	const ins = `INSERT INTO bookings (id, user_id, movie_id, showtime_date, showtime_time, seats,
		total_amount_cents, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, ins,
		b.ID, b.UserID, b.MovieID, b.Showtime.Date, b.Showtime.Time, seatsJSON,
		int64(b.TotalAmount), string(b.Status), b.Version, b.CreatedAt, b.UpdatedAt,
	); err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO booking_seats (booking_id, movie_id, show_day, show_time, seat_number) VALUES ")
	args := make([]any, 0, len(b.Seats)*5)
	for i, seat := range b.Seats {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, b.ID, b.MovieID, day, b.Showtime.Time, seat)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		if !isDuplicateKey(err) {
			return err
		}
		// Lost the race to a booking committed after our first read. The
		// locking read sees the latest committed rows.
		taken, qerr := claimedSeatsTx(ctx, tx, b.MovieID, day, b.Showtime.Time, b.Seats, true)
		if qerr != nil || len(taken) == 0 {
			taken = append([]int(nil), b.Seats...)
		}
		return &SeatConflictError{Seats: taken}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// claimedSeatsTx returns which of seats are already claimed for the
// showtime, ascending.
func claimedSeatsTx(ctx context.Context, tx *sql.Tx, movieID, day, label string, seats []int, locking bool) ([]int, error) {
	if len(seats) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(seats))
	args := make([]any, 0, len(seats)+3)
	args = append(args, movieID, day, label)
	for i, s := range seats {
		placeholders[i] = "?"
		args = append(args, s)
	}
	q := `SELECT seat_number FROM booking_seats
		WHERE movie_id = ? AND show_day = ? AND show_time = ? AND seat_number IN (` + strings.Join(placeholders, ",") + `)
		ORDER BY seat_number`
	if locking {
		q += " LOCK IN SHARE MODE"
	}
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var taken []int
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		taken = append(taken, s)
	}
	return taken, rows.Err()
}

// ActiveSeats returns the seats of every pending or confirmed booking for
// the movie whose showtime falls on day (UTC) with exactly the given label.
// The result is a sorted union without duplicates.
func (r *BookingRepo) ActiveSeats(ctx context.Context, movieID string, day time.Time, label string) ([]int, error) {
	start := model.DayOf(day)
	end := start.Add(24 * time.Hour)
	const q = `SELECT seats FROM bookings
		WHERE movie_id = ? AND showtime_date >= ? AND showtime_date < ? AND showtime_time = ?
		AND status IN ('pending', 'confirmed')`
	rows, err := r.db.QueryContext(ctx, q, movieID, start, end, label)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lists := make([][]int, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var seats []int
		if err := json.Unmarshal(raw, &seats); err != nil {
			return nil, fmt.Errorf("decode seats: %w", err)
		}
		lists = append(lists, seats)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return model.UnionSeats(lists...), nil
}

// GetByID returns the booking with its movie title, or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + `, COALESCE(m.title, 'N/A')
		FROM bookings b LEFT JOIN movies m ON m.id = b.movie_id
		WHERE b.id = ?`
	var title string
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id), &title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	b.MovieTitle = title
	return b, nil
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + `, COALESCE(m.title, 'N/A')
		FROM bookings b LEFT JOIN movies m ON m.id = b.movie_id
		WHERE b.user_id = ?
		ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		var title string
		b, err := scanBooking(rows, &title)
		if err != nil {
			return nil, err
		}
		b.MovieTitle = title
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ListAll returns every booking with user and movie resolved, newest first.
// Missing users or movies are reported as "N/A".
func (r *BookingRepo) ListAll(ctx context.Context) ([]model.BookingView, error) {
	q := `SELECT ` + bookingColumns + `, COALESCE(m.title, 'N/A'), COALESCE(u.name, 'N/A'), COALESCE(u.email, 'N/A')
		FROM bookings b
		LEFT JOIN movies m ON m.id = b.movie_id
		LEFT JOIN users u ON u.id = b.user_id
		ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BookingView, 0)
	for rows.Next() {
		var title, name, email string
		b, err := scanBooking(rows, &title, &name, &email)
		if err != nil {
			return nil, err
		}
		out = append(out, model.BookingView{
			ID:            b.ID,
			User:          model.UserSummary{Name: name, Email: email},
			Movie:         model.MovieSummary{Title: title},
			Showtime:      b.Showtime,
			Seats:         b.Seats,
			TotalAmount:   b.TotalAmount,
			Status:        b.Status,
			PaymentMethod: b.PaymentMethod,
			CreatedAt:     b.CreatedAt,
		})
	}
	return out, rows.Err()
}

// ListStalePending returns up to limit pending bookings created before the
// cutoff, oldest first.
func (r *BookingRepo) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.status = 'pending' AND b.created_at < ?
		ORDER BY b.created_at
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// UpdateStatus moves b to next if it still has the version that was read.
// A payment, when given, is recorded in the same statement. Moving to a
// status that does not hold seats releases the claim rows in the same
// transaction. On success b reflects the stored row; on ErrStaleBooking
// it is left untouched.
func (r *BookingRepo) UpdateStatus(ctx context.Context, b *model.Booking, next model.BookingStatus, pay *model.Payment, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var res sql.Result
	if pay != nil {
		const q = `UPDATE bookings SET status = ?, payment_method = ?, payment_date = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`
		res, err = tx.ExecContext(ctx, q, string(next), pay.Method, pay.Date, at, b.ID, b.Version)
	} else {
		const q = `UPDATE bookings SET status = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`
		res, err = tx.ExecContext(ctx, q, string(next), at, b.ID, b.Version)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleBooking
	}

	if !next.IsActive() {
		if _, err := tx.ExecContext(ctx, `DELETE FROM booking_seats WHERE booking_id = ?`, b.ID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	b.Status = next
	b.Version++
	b.UpdatedAt = at
	if pay != nil {
		method := pay.Method
		date := pay.Date
		b.PaymentMethod = &method
		b.PaymentDate = &date
	}
	return nil
}

// Delete removes a booking that is not confirmed. Its claim rows go with it
// through the foreign key. Returns ErrBookingNotFound or ErrBookingConfirmed
// when nothing was deleted.
func (r *BookingRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ? AND status <> 'confirmed'`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var status string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBookingNotFound
	}
	if err != nil {
		return err
	}
	return ErrBookingConfirmed
}
