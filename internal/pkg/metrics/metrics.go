package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors exported on /metrics.
type Metrics struct {
	// method, path, status_code
	HTTPRequestsTotal *prometheus.CounterVec

	// method, path
	HTTPRequestDuration *prometheus.HistogramVec

	// result: created, conflict, invalid, error
	ReservationsTotal *prometheus.CounterVec

	// to: confirmed, cancelled
	TransitionsTotal *prometheus.CounterVec

	// status: acquired, skipped
	ShowtimeLockWait *prometheus.HistogramVec
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_reservations_total",
				Help: "Reservation attempts by outcome",
			},
			[]string{"result"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_transitions_total",
				Help: "Booking status transitions by target status",
			},
			[]string{"to"},
		),
		ShowtimeLockWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bookings_showtime_lock_wait_seconds",
				Help:    "Time spent waiting for the per-showtime reservation lock",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReservationsTotal,
		m.TransitionsTotal,
		m.ShowtimeLockWait,
	)

	return m
}

// ObserveReservation is safe on a nil receiver so services can run without metrics.
func (m *Metrics) ObserveReservation(result string) {
	if m == nil {
		return
	}
	m.ReservationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(to).Inc()
}

func (m *Metrics) ObserveLockWait(status string, seconds float64) {
	if m == nil {
		return
	}
	m.ShowtimeLockWait.WithLabelValues(status).Observe(seconds)
}
