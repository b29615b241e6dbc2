package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/fairyhunter13/stays-ledger/internal/availability"
	"github.com/fairyhunter13/stays-ledger/internal/middleware"
)

func userIDFrom(c *fiber.Ctx) string {
	return middleware.UserID(c)
}

// parseDates reads a check-in/check-out pair of YYYY-MM-DD dates.
func parseDates(checkIn, checkOut string) (time.Time, time.Time, bool) {
	in, err := availability.ParseDay(checkIn)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	out, err := availability.ParseDay(checkOut)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return in, out, true
}

// bookingIDParam reads the :id route param. Booking ids are UUIDs, so anything
// else names a booking that cannot exist.
func bookingIDParam(c *fiber.Ctx) (string, bool) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}
