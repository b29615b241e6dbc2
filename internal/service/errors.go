package service

import (
	"errors"

	"github.com/fairyhunter13/stays-ledger/internal/availability"
)

// Validation errors: rejected before any side effect.
var (
	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidDates is returned when check-out is not after check-in
	ErrInvalidDates = availability.ErrInvalidRange

	// ErrCheckInPast is returned when check-in is before today
	ErrCheckInPast = availability.ErrCheckInPast

	// ErrSelfBooking is returned when a host tries to book their own listing
	ErrSelfBooking = errors.New("cannot book your own listing")

	// ErrGuestLimit is returned when the guest count exceeds the listing maximum
	ErrGuestLimit = errors.New("guest count exceeds listing maximum")
)

// Conflict errors: rejected before any side effect.
var (
	ErrDateConflict  = availability.ErrDateConflict
	ErrBlockedByHost = availability.ErrBlockedByHost

	// ErrInvalidTransition is returned when a booking's status does not allow the action
	ErrInvalidTransition = errors.New("booking status does not allow this action")

	// ErrCancellationWindowClosed is returned when cancelling on or after check-in day
	ErrCancellationWindowClosed = errors.New("booking can no longer be cancelled")
)

// Payment errors: rejected before booking persistence.
var (
	// ErrPaymentNotCompleted is returned when the provider capture is not in its completed state
	ErrPaymentNotCompleted = errors.New("payment not completed")

	// ErrPaymentAmountMismatch is returned when the captured amount differs from the booking total
	ErrPaymentAmountMismatch = errors.New("captured amount does not match booking total")

	// ErrPaymentAlreadyUsed is returned when a capture id is already bound to another guest's booking
	ErrPaymentAlreadyUsed = errors.New("payment already used for another booking")

	// ErrInsufficientBalance is returned when the wallet cannot cover the booking total
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrUnpaid is returned when accepting a booking whose payment is not secured
	ErrUnpaid = errors.New("booking is not paid")
)

// Lookup and authorization errors.
var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrListingNotFound = errors.New("listing not found")

	// ErrForbidden is returned when the caller is not the party allowed to act
	ErrForbidden = errors.New("not allowed to act on this booking")
)

// Points errors.
var (
	// ErrInsufficientPoints is returned when a reward claim finds less than one reward's worth of points.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrNotReviewable is returned when review points are requested before the stay has completed
	ErrNotReviewable = errors.New("booking cannot be reviewed until the stay is completed")
)

// IsRejection reports whether err is a business rejection rather than an infrastructure failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrInvalidRequest, ErrInvalidDates, ErrCheckInPast, ErrSelfBooking, ErrGuestLimit,
		ErrDateConflict, ErrBlockedByHost, ErrInvalidTransition, ErrCancellationWindowClosed,
		ErrPaymentNotCompleted, ErrPaymentAmountMismatch, ErrPaymentAlreadyUsed, ErrInsufficientBalance,
		ErrUnpaid, ErrBookingNotFound, ErrListingNotFound, ErrForbidden, ErrInsufficientPoints,
		ErrNotReviewable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
