package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/movie-ticket-booking/internal/config"
	"github.com/iliyamo/movie-ticket-booking/internal/handler"
	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// APIPrefix is where the booking and movie routes live.
const APIPrefix = "/api/v1"

// Deps are the handlers and settings the routes are built from. Redis may
// be nil, which turns the response cache and rate limiter into no-ops.
type Deps struct {
	Bookings  *handler.BookingHandler
	Movies    *handler.MovieHandler
	Health    *handler.HealthHandler
	JWTSecret string
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Gatherer  prometheus.Gatherer
}

// RegisterRoutes mounts every route on e.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health.Check)
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group(APIPrefix)
	registerMovies(api, d)
	registerBookings(api, d)
}

// registerMovies exposes the read-only catalog behind the response cache.
func registerMovies(api *echo.Group, d Deps) {
	g := api.Group("/movie", middleware.NewRedisCache(d.Cache, d.Redis))
	g.GET("/get-movies", d.Movies.GetMovies)
	g.GET("/get-movie/:id", d.Movies.GetMovie)
	g.GET("/search", d.Movies.Search)
}

// registerBookings covers the public availability query, the routes any
// signed-in user may call and the admin routes.
func registerBookings(api *echo.Group, d Deps) {
	api.GET("/booking/booked-seats/:movieId", d.Bookings.BookedSeats)

	g := api.Group("/booking", middleware.JWTAuth(d.JWTSecret))
	anyUser := middleware.RequireRole(model.RoleUser, model.RoleAdmin)
	admin := middleware.RequireRole(model.RoleAdmin)
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis)

	g.POST("/create-booking", d.Bookings.Create, anyUser, limit)
	g.POST("/process-payment", d.Bookings.ProcessPayment, anyUser, limit)
	g.GET("/user-bookings", d.Bookings.UserBookings, anyUser)
	g.GET("/:id", d.Bookings.Get, anyUser)

	g.GET("/all-bookings", d.Bookings.AllBookings, admin)
	g.PUT("/update-status/:id", d.Bookings.UpdateStatus, admin)
	g.DELETE("/delete-booking/:id", d.Bookings.Delete, admin)
}
