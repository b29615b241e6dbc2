package handler

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/stays-ledger/internal/discount"
	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/internal/service"
)

// AvailabilityServiceInterface defines availability and calendar reads.
type AvailabilityServiceInterface interface {
	CheckAvailability(ctx context.Context, listingID string, checkIn, checkOut time.Time) error
	Calendar(ctx context.Context, listingID string) (*model.CalendarResponse, error)
}

// DiscountServiceInterface defines discount previews.
type DiscountServiceInterface interface {
	ResolveDiscount(ctx context.Context, listingID, code string, checkIn, checkOut time.Time) (*model.Quote, error)
}

// ListingHandler handles the listing-scoped read endpoints.
type ListingHandler struct {
	availability AvailabilityServiceInterface
	discounts    DiscountServiceInterface
	validator    *validator.Validate
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(availability AvailabilityServiceInterface, discounts DiscountServiceInterface, v *validator.Validate) *ListingHandler {
	return &ListingHandler{availability: availability, discounts: discounts, validator: v}
}

// Availability handles GET /api/listings/:id/availability?check_in=&check_out=.
// A range that cannot be booked is a normal answer, not an error.
func (h *ListingHandler) Availability(c *fiber.Ctx) error {
	checkIn, checkOut, ok := parseDates(c.Query("check_in"), c.Query("check_out"))
	if !ok {
		return badRequest(c, "invalid request: check_in and check_out must be dates in YYYY-MM-DD format")
	}

	err := h.availability.CheckAvailability(c.Context(), c.Params("id"), checkIn, checkOut)
	switch {
	case err == nil:
		return c.JSON(model.AvailabilityResponse{Available: true})
	case errors.Is(err, service.ErrDateConflict), errors.Is(err, service.ErrBlockedByHost),
		errors.Is(err, service.ErrCheckInPast), errors.Is(err, service.ErrInvalidDates):
		return c.JSON(model.AvailabilityResponse{Available: false, Reason: err.Error()})
	default:
		return respondError(c, err, "failed to check availability")
	}
}

// Calendar handles GET /api/listings/:id/calendar.
func (h *ListingHandler) Calendar(c *fiber.Ctx) error {
	cal, err := h.availability.Calendar(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "failed to build calendar")
	}
	return c.JSON(cal)
}

// Discount handles POST /api/listings/:id/discount. A code that does not
// apply answers 422 with the undiscounted quote.
func (h *ListingHandler) Discount(c *fiber.Ctx) error {
	var req model.DiscountRequest
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

	quote, err := h.discounts.ResolveDiscount(c.Context(), c.Params("id"), req.Code, checkIn, checkOut)
	if err != nil {
		if discount.IsDiscountError(err) && quote != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(quote)
		}
		return respondError(c, err, "failed to resolve discount")
	}
	return c.JSON(quote)
}
