package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/movie-ticket-booking/internal/pkg/logger"
)

// StaleBookingCanceller is the part of the booking service the sweeper uses.
type StaleBookingCanceller interface {
	CancelStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// PendingSweeper periodically cancels pending bookings that were never
// paid, giving their seats back.
type PendingSweeper struct {
	bookings  StaleBookingCanceller
	interval  time.Duration
	olderThan time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewPendingSweeper(bookings StaleBookingCanceller, interval, olderThan time.Duration) *PendingSweeper {
	return &PendingSweeper{
		bookings:  bookings,
		interval:  interval,
		olderThan: olderThan,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called.
func (w *PendingSweeper) Start(ctx context.Context) {
	logger.Info("pending booking sweeper started",
		zap.Duration("interval", w.interval),
		zap.Duration("older_than", w.olderThan),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("pending booking sweeper stopped (context done)")
			return
		case <-w.stopCh:
			logger.Info("pending booking sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop must only be called after Start.
func (w *PendingSweeper) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *PendingSweeper) sweep(ctx context.Context) {
	log := logger.Get()
	n, err := w.bookings.CancelStalePending(ctx, w.olderThan)
	if err != nil {
		log.Error("pending booking sweep failed", zap.Int("cancelled", n), zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("stale pending bookings cancelled", zap.Int("count", n))
	} else {
		log.Debug("no stale pending bookings")
	}
}
