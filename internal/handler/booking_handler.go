package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/internal/service"
)

// BookingServiceInterface defines booking reads and status transitions.
type BookingServiceInterface interface {
	TransitionBooking(ctx context.Context, actorID, bookingID string, action service.Action) (*model.TransitionResponse, error)
	GetBooking(ctx context.Context, userID, bookingID string) (*model.Booking, error)
	ListBookings(ctx context.Context, userID string, asHost bool) ([]*model.Booking, error)
}

// CheckoutServiceInterface defines payment-gated booking creation.
type CheckoutServiceInterface interface {
	CreatePaidBooking(ctx context.Context, in service.CreatePaidBookingInput) (*model.Booking, error)
}

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	bookings  BookingServiceInterface
	checkout  CheckoutServiceInterface
	validator *validator.Validate
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookings BookingServiceInterface, checkout CheckoutServiceInterface, v *validator.Validate) *BookingHandler {
	return &BookingHandler{bookings: bookings, checkout: checkout, validator: v}
}

// Create handles POST /api/bookings. The authenticated user is the guest.
func (h *BookingHandler) Create(c *fiber.Ctx) error {
	var req model.CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, formatValidationError(err))
	}
	checkIn, checkOut, ok := parseDates(req.CheckIn, req.CheckOut)
	if !ok {
		return badRequest(c, "invalid request: dates must be in YYYY-MM-DD format")
	}

	guestID := userIDFrom(c)
	booking, err := h.checkout.CreatePaidBooking(c.Context(), service.CreatePaidBookingInput{
		GuestID:           guestID,
		ListingID:         req.ListingID,
		CheckIn:           checkIn,
		CheckOut:          checkOut,
		GuestCount:        req.GuestCount,
		CouponCode:        req.CouponCode,
		PaymentMethod:     model.PaymentMethod(req.PaymentMethod),
		ExternalPaymentID: req.ExternalPaymentID,
	})
	if err != nil {
		return respondError(c, err, "failed to create booking")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Str("user_id", guestID).
		Str("booking_id", booking.ID).
		Msg("booking created successfully")

	return c.Status(fiber.StatusCreated).JSON(booking)
}

// List handles GET /api/bookings?role=guest|host.
func (h *BookingHandler) List(c *fiber.Ctx) error {
	var asHost bool
	switch c.Query("role", "guest") {
	case "guest":
	case "host":
		asHost = true
	default:
		return badRequest(c, "invalid request: role must be one of: guest host")
	}

	bookings, err := h.bookings.ListBookings(c.Context(), userIDFrom(c), asHost)
	if err != nil {
		return respondError(c, err, "failed to list bookings")
	}
	return c.JSON(fiber.Map{"bookings": bookings})
}

// Get handles GET /api/bookings/:id.
func (h *BookingHandler) Get(c *fiber.Ctx) error {
	id, ok := bookingIDParam(c)
	if !ok {
		return respondError(c, service.ErrBookingNotFound, "failed to get booking")
	}
	booking, err := h.bookings.GetBooking(c.Context(), userIDFrom(c), id)
	if err != nil {
		return respondError(c, err, "failed to get booking")
	}
	return c.JSON(booking)
}

// Accept handles POST /api/bookings/:id/accept.
func (h *BookingHandler) Accept(c *fiber.Ctx) error {
	return h.transition(c, service.ActionAccept)
}

// Reject handles POST /api/bookings/:id/reject.
func (h *BookingHandler) Reject(c *fiber.Ctx) error {
	return h.transition(c, service.ActionReject)
}

// Cancel handles POST /api/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c *fiber.Ctx) error {
	return h.transition(c, service.ActionCancel)
}

func (h *BookingHandler) transition(c *fiber.Ctx, action service.Action) error {
	id, ok := bookingIDParam(c)
	if !ok {
		return respondError(c, service.ErrBookingNotFound, "failed to "+string(action)+" booking")
	}
	actorID := userIDFrom(c)
	resp, err := h.bookings.TransitionBooking(c.Context(), actorID, id, action)
	if err != nil {
		return respondError(c, err, "failed to "+string(action)+" booking")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Str("user_id", actorID).
		Str("booking_id", resp.Booking.ID).
		Str("action", string(action)).
		Msg("booking transitioned successfully")

	return c.JSON(resp)
}
