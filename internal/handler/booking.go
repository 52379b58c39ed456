package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

// BookingHandler serves /booking. Authentication and role checks run in
// middleware before these handlers.
type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	if s == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{service: s}
}

type ShowtimeRequest struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time" validate:"required"`
}

type CreateBookingRequest struct {
	MovieID     string          `json:"movieId" validate:"required"`
	Showtime    ShowtimeRequest `json:"showtime"`
	Seats       []int           `json:"seats" validate:"required,min=1,dive,gt=0"`
	TotalAmount model.Cents     `json:"totalAmount" validate:"gt=0"`
}

type PaymentRequest struct {
	BookingID     string      `json:"bookingId" validate:"required"`
	Amount        model.Cents `json:"amount"`
	PaymentMethod string      `json:"paymentMethod" validate:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed cancelled"`
}

// bindAndValidate maps bind failures and validation failures onto
// InvalidArgument.
func bindAndValidate(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		if errors.Is(err, model.ErrAmountOutOfRange) {
			return service.InvalidArgument("amount out of range")
		}
		return service.InvalidArgument("invalid request body")
	}
	return c.Validate(dst)
}

// getUserID returns the authenticated user or an Unauthorized error.
func getUserID(c echo.Context) (string, error) {
	id := middleware.UserID(c)
	if id == "" {
		return "", &service.Error{Kind: service.KindUnauthorized, Message: "unauthorized"}
	}
	return id, nil
}

// BookedSeats handles GET /booking/booked-seats/:movieId?date=&time=.
func (h *BookingHandler) BookedSeats(c echo.Context) error {
	seats, err := h.service.BookedSeats(c.Request().Context(), c.Param("movieId"), c.QueryParam("date"), c.QueryParam("time"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "bookedSeats": seats})
}

// Create handles POST /booking/create-booking.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return fail(c, err)
	}
	var req CreateBookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return fail(c, err)
	}
	b, err := h.service.Reserve(c.Request().Context(), service.ReserveInput{
		UserID:       userID,
		MovieID:      req.MovieID,
		Date:         req.Showtime.Date,
		Time:         req.Showtime.Time,
		Seats:        req.Seats,
		ClaimedTotal: req.TotalAmount,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "Booking created successfully",
		"booking": b,
	})
}

// UserBookings handles GET /booking/user-bookings.
func (h *BookingHandler) UserBookings(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return fail(c, err)
	}
	bookings, err := h.service.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "bookings": bookings})
}

// AllBookings handles GET /booking/all-bookings (admin).
func (h *BookingHandler) AllBookings(c echo.Context) error {
	views, err := h.service.ListAll(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "bookings": views})
}

// Get handles GET /booking/:id for the owner or an admin.
func (h *BookingHandler) Get(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return fail(c, err)
	}
	b, err := h.service.Get(c.Request().Context(), c.Param("id"), middleware.Principal(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "booking": b})
}

// ProcessPayment handles POST /booking/process-payment.
func (h *BookingHandler) ProcessPayment(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return fail(c, err)
	}
	var req PaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return fail(c, err)
	}
	b, err := h.service.Pay(c.Request().Context(), service.PayInput{
		BookingID: req.BookingID,
		UserID:    userID,
		Amount:    req.Amount,
		Method:    req.PaymentMethod,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Payment processed successfully",
		"booking": b,
	})
}

// UpdateStatus handles PUT /booking/update-status/:id (admin).
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	var req UpdateStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return fail(c, err)
	}
	b, err := h.service.UpdateStatus(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": fmt.Sprintf("Booking %s successfully", b.Status),
		"booking": b,
	})
}

// Delete handles DELETE /booking/delete-booking/:id (admin).
func (h *BookingHandler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Booking deleted successfully"})
}
