// Package repository is the MySQL data access layer. The sentinel values
// below let the service layer tell failure scenarios apart without looking
// at driver errors.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrMovieNotFound   = errors.New("movie not found")

	// ErrStaleBooking is returned when a version-checked update matched no
	// row: somebody else changed the booking since it was read.
	ErrStaleBooking = errors.New("booking was modified concurrently")

	// ErrBookingConfirmed is returned by Delete for confirmed bookings.
	ErrBookingConfirmed = errors.New("booking is confirmed")
)

// SeatConflictError reports the seats of a reservation that already belong
// to another active booking of the same showtime.
type SeatConflictError struct {
	Seats []int
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats already booked: %v", e.Seats)
}

const (
	mysqlDuplicateEntry = 1062
	mysqlDeadlock       = 1213
	mysqlLockWait       = 1205
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicateKey(err error) bool { return mysqlErrNumber(err) == mysqlDuplicateEntry }

// isRetryable reports errors after which the whole transaction can simply
// be run again.
func isRetryable(err error) bool {
	n := mysqlErrNumber(err)
	return n == mysqlDeadlock || n == mysqlLockWait
}
