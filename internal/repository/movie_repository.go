package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// MovieRepo reads the movie catalog. The catalog is maintained by another
// service; nothing here writes to it.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo returns a new MovieRepo bound to the given database.
func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

const movieColumns = `id, title, description, release_date, genres, director, cast_members,
	duration, poster, status, price_cents, created_at, updated_at`

func scanMovie(s rowScanner) (*model.Movie, error) {
	var (
		m            model.Movie
		genres, cast []byte
		status       string
	)
	if err := s.Scan(
		&m.ID, &m.Title, &m.Description, &m.ReleaseDate, &genres, &m.Director, &cast,
		&m.Duration, &m.Poster, &status, &m.Price, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := decodeStrings(genres, &m.Genres); err != nil {
		return nil, fmt.Errorf("decode genres of movie %s: %w", m.ID, err)
	}
	if err := decodeStrings(cast, &m.Cast); err != nil {
		return nil, fmt.Errorf("decode cast of movie %s: %w", m.ID, err)
	}
	m.Status = model.MovieStatus(status)
	m.Showtimes = []model.MovieShowtime{}
	return &m, nil
}

func decodeStrings(raw []byte, dst *[]string) error {
	if len(raw) == 0 {
		*dst = []string{}
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	if *dst == nil {
		*dst = []string{}
	}
	return nil
}

// GetByID returns the movie with its showtimes in schedule order, or
// ErrMovieNotFound.
func (r *MovieRepo) GetByID(ctx context.Context, id string) (*model.Movie, error) {
	m, err := scanMovie(r.db.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMovieNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachShowtimes(ctx, []*model.Movie{m}); err != nil {
		return nil, err
	}
	return m, nil
}

// List returns all movies, newest first.
func (r *MovieRepo) List(ctx context.Context) ([]model.Movie, error) {
	return r.query(ctx, `SELECT `+movieColumns+` FROM movies ORDER BY created_at DESC`)
}

// Search matches the term case-insensitively against title, director,
// genres and cast. An empty term lists everything.
func (r *MovieRepo) Search(ctx context.Context, term string) ([]model.Movie, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return r.List(ctx)
	}
	like := "%" + escapeLike(strings.ToLower(term)) + "%"
	const where = ` WHERE LOWER(title) LIKE ? OR LOWER(director) LIKE ?
		OR LOWER(CAST(genres AS CHAR)) LIKE ? OR LOWER(CAST(cast_members AS CHAR)) LIKE ?
		ORDER BY created_at DESC`
	return r.query(ctx, `SELECT `+movieColumns+` FROM movies`+where, like, like, like, like)
}

func (r *MovieRepo) query(ctx context.Context, q string, args ...any) ([]model.Movie, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ptrs := make([]*model.Movie, 0)
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachShowtimes(ctx, ptrs); err != nil {
		return nil, err
	}
	out := make([]model.Movie, len(ptrs))
	for i, m := range ptrs {
		out[i] = *m
	}
	return out, nil
}

// attachShowtimes loads the showtimes of all given movies with one query.
func (r *MovieRepo) attachShowtimes(ctx context.Context, movies []*model.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	byID := make(map[string]*model.Movie, len(movies))
	placeholders := make([]string, 0, len(movies))
	args := make([]any, 0, len(movies))
	for _, m := range movies {
		byID[m.ID] = m
		placeholders = append(placeholders, "?")
		args = append(args, m.ID)
	}
	q := `SELECT movie_id, show_date, show_time, seats FROM movie_showtimes
		WHERE movie_id IN (` + strings.Join(placeholders, ",") + `)
		ORDER BY movie_id, position`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			movieID string
			st      model.MovieShowtime
		)
		if err := rows.Scan(&movieID, &st.Date, &st.Time, &st.Seats); err != nil {
			return err
		}
		if m, ok := byID[movieID]; ok {
			m.Showtimes = append(m.Showtimes, st)
		}
	}
	return rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
