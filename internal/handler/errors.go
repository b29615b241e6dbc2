package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/stays-ledger/internal/discount"
	"github.com/fairyhunter13/stays-ledger/internal/service"
)

var errorStatuses = []struct {
	target error
	status int
}{
	{service.ErrInvalidRequest, fiber.StatusBadRequest},
	{service.ErrInvalidDates, fiber.StatusBadRequest},
	{service.ErrCheckInPast, fiber.StatusBadRequest},
	{service.ErrSelfBooking, fiber.StatusBadRequest},
	{service.ErrGuestLimit, fiber.StatusBadRequest},

	{service.ErrForbidden, fiber.StatusForbidden},

	{service.ErrBookingNotFound, fiber.StatusNotFound},
	{service.ErrListingNotFound, fiber.StatusNotFound},

	{service.ErrDateConflict, fiber.StatusConflict},
	{service.ErrBlockedByHost, fiber.StatusConflict},
	{service.ErrInvalidTransition, fiber.StatusConflict},
	{service.ErrCancellationWindowClosed, fiber.StatusConflict},
	{service.ErrPaymentAlreadyUsed, fiber.StatusConflict},
	{service.ErrUnpaid, fiber.StatusConflict},
	{service.ErrNotReviewable, fiber.StatusConflict},

	{service.ErrPaymentNotCompleted, fiber.StatusPaymentRequired},
	{service.ErrPaymentAmountMismatch, fiber.StatusPaymentRequired},
	{service.ErrInsufficientBalance, fiber.StatusPaymentRequired},

	{service.ErrInsufficientPoints, fiber.StatusUnprocessableEntity},
}

// statusFor maps a service error to its HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.target) {
			return e.status
		}
	}
	if discount.IsDiscountError(err) {
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

// respondError writes err as {"error": ...}. Internal errors are logged with
// the request context and hidden from the client.
func respondError(c *fiber.Ctx, err error, msg string) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("user_id", userIDFrom(c)).
			Msg(msg)
		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// formatValidationError turns the first validator error into a client message.
// Field names are the JSON names registered by internal/validator.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			switch fe.Tag() {
			case "required", "required_if":
				return "invalid request: " + field + " is required"
			case "notblank":
				return "invalid request: " + field + " cannot be whitespace only"
			case "max":
				return "invalid request: " + field + " exceeds maximum length of " + fe.Param()
			case "gte":
				return "invalid request: " + field + " must be at least " + fe.Param()
			case "datetime":
				return "invalid request: " + field + " must be a date in YYYY-MM-DD format"
			case "oneof":
				return "invalid request: " + field + " must be one of: " + fe.Param()
			default:
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
