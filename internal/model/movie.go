package model

import "time"

// MovieStatus is the catalog state of a movie.
type MovieStatus string

const (
	MovieNowShowing MovieStatus = "now_showing"
	MovieComingSoon MovieStatus = "coming_soon"
)

// DefaultShowtimeSeats is the capacity of a showtime created without one.
const DefaultShowtimeSeats = 100

// MovieShowtime is one scheduled screening of a movie.
type MovieShowtime struct {
	Date  time.Time `json:"date"`  // movie_showtimes.show_date
	Time  string    `json:"time"`  // movie_showtimes.show_time
	Seats int       `json:"seats"` // movie_showtimes.seats (capacity)
}

// Movie is a read-only catalog entry.
type Movie struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	ReleaseDate time.Time       `json:"releaseDate"`
	Genres      []string        `json:"genre"`
	Director    string          `json:"director"`
	Cast        []string        `json:"cast"`
	Duration    string          `json:"duration"`
	Poster      string          `json:"poster"`
	Status      MovieStatus     `json:"status"`
	Price       Cents           `json:"price"`
	Showtimes   []MovieShowtime `json:"showtimes"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// FindShowtime looks up the showtime with the given UTC day and label.
func (m *Movie) FindShowtime(day time.Time, label string) (MovieShowtime, bool) {
	day = DayOf(day)
	label = NormalizeTimeLabel(label)
	for _, st := range m.Showtimes {
		if DayOf(st.Date).Equal(day) && NormalizeTimeLabel(st.Time) == label {
			if st.Seats <= 0 {
				st.Seats = DefaultShowtimeSeats
			}
			return st, true
		}
	}
	return MovieShowtime{}, false
}
