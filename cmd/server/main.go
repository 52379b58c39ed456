package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-ticket-booking/internal/cache"
	"github.com/iliyamo/movie-ticket-booking/internal/config"
	"github.com/iliyamo/movie-ticket-booking/internal/database"
	"github.com/iliyamo/movie-ticket-booking/internal/handler"
	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
	"github.com/iliyamo/movie-ticket-booking/internal/pkg/logger"
	"github.com/iliyamo/movie-ticket-booking/internal/pkg/metrics"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/router"
	"github.com/iliyamo/movie-ticket-booking/internal/service"
	"github.com/iliyamo/movie-ticket-booking/internal/worker"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	cfg := config.Load()

	logger.Set(logger.NewLogger(cfg.Env))
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	logger.Info("database connected", zap.String("host", cfg.DBHost), zap.String("database", cfg.DBName))

	if cfg.MigrateOnStart {
		if err := database.RunMigrations(db); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	bookingRepo := repository.NewBookingRepo(db)
	movieRepo := repository.NewMovieRepo(db)

	m := metrics.New()
	availCfg := config.LoadAvailabilityConfig()
	opts := []service.Option{
		service.WithMetrics(m),
		service.WithMaxSeats(availCfg.MaxSeatsPerBooking),
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
		if availCfg.SeatsCacheTTL > 0 {
			opts = append(opts, service.WithSeatCache(cache.NewSeatCache(rdb, availCfg.SeatsCacheTTL)))
		}
		if availCfg.LockEnabled {
			opts = append(opts, service.WithShowtimeLocker(
				cache.NewLockManager(rdb, availCfg.LockTTL, availCfg.LockRetries, availCfg.LockRetryDelay),
			))
		}
	}

	var wg sync.WaitGroup
	queueCfg := config.LoadQueueConfig()
	if queueCfg.Enabled {
		opts = append(opts, service.WithPublisher(queue.NewPublisher(queueCfg.URL, queueCfg.PublishTimeout), queueCfg.PublishTimeout))
		logger.Info("booking events enabled", zap.Bool("consumer", queueCfg.ConsumerEnabled))
	}
	if queueCfg.ConsumerEnabled {
		consumer := queue.NewConsumer(queueCfg.URL, queueCfg.LogDir)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("booking event consumer stopped", zap.Error(err))
			}
		}()
	}

	bookingSvc := service.NewBookingService(bookingRepo, movieRepo, opts...)

	workerCfg := config.LoadWorkerConfig()
	if workerCfg.Enabled() {
		sweeper := worker.NewPendingSweeper(bookingSvc, workerCfg.SweepInterval, workerCfg.PendingTTL)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Start(ctx)
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Recover())
	e.Use(middleware.PrometheusMiddleware(m))

	router.RegisterRoutes(e, router.Deps{
		Bookings:  handler.NewBookingHandler(bookingSvc),
		Movies:    handler.NewMovieHandler(movieRepo),
		Health:    handler.NewHealthHandler(db),
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Gatherer:  prometheus.DefaultGatherer,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("http server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server failed", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
	wg.Wait()
	logger.Info("server stopped")
}
