package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

// MovieHandler serves the public, read-only movie catalog.
type MovieHandler struct {
	movies MovieReader
}

func NewMovieHandler(movies MovieReader) *MovieHandler {
	if movies == nil {
		panic("nil repository passed to NewMovieHandler")
	}
	return &MovieHandler{movies: movies}
}

func movieList(c echo.Context, movies []model.Movie, err error, msg string) error {
	if err != nil {
		return fail(c, service.Internal(msg, err))
	}
	if movies == nil {
		movies = []model.Movie{}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "movies": movies})
}

// GetMovies handles GET /movie/get-movies.
func (h *MovieHandler) GetMovies(c echo.Context) error {
	movies, err := h.movies.List(c.Request().Context())
	return movieList(c, movies, err, "error in getting movies")
}

// GetMovie handles GET /movie/get-movie/:id.
func (h *MovieHandler) GetMovie(c echo.Context) error {
	m, err := h.movies.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return fail(c, service.NotFound("movie not found"))
		}
		return fail(c, service.Internal("error in getting movie", err))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "movie": m})
}

// Search handles GET /movie/search?q=. The term matches title, genre,
// director and cast, case-insensitively.
func (h *MovieHandler) Search(c echo.Context) error {
	movies, err := h.movies.Search(c.Request().Context(), strings.TrimSpace(c.QueryParam("q")))
	return movieList(c, movies, err, "error in searching movies")
}
