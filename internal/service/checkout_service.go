package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/stays-ledger/internal/availability"
	"github.com/fairyhunter13/stays-ledger/internal/discount"
	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/internal/payment"
	"github.com/fairyhunter13/stays-ledger/internal/policy"
	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

// CreatePaidBookingInput is a reservation request with its payment path.
type CreatePaidBookingInput struct {
	GuestID           string
	ListingID         string
	CheckIn           time.Time
	CheckOut          time.Time
	GuestCount        int
	CouponCode        string
	PaymentMethod     model.PaymentMethod
	ExternalPaymentID string
}

// CheckoutService creates bookings only once their payment is secured.
type CheckoutService struct {
	db       DB
	stores   Stores
	payments PaymentProvider
	currency string
	now      Clock
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(db DB, stores Stores, payments PaymentProvider, currency string) *CheckoutService {
	return &CheckoutService{
		db:       db,
		stores:   stores,
		payments: payments,
		currency: currency,
		now:      time.Now,
	}
}

// CreatePaidBooking validates the request, secures payment through exactly one
// path and persists the booking as pending and paid.
//
// External payments are verified against the provider before anything is
// written. The call is idempotent on the capture id: retrying after a failed
// write returns the booking the capture already paid for, or creates it.
// If a verified capture is refused for a business reason (dates taken,
// amount mismatch), the capture is refunded at the provider.
//
// Balance payments debit the guest in the same transaction as the insert.
func (s *CheckoutService) CreatePaidBooking(ctx context.Context, in CreatePaidBookingInput) (*model.Booking, error) {
	if in.GuestID == "" || in.ListingID == "" || in.GuestCount < 1 {
		return nil, ErrInvalidRequest
	}
	switch in.PaymentMethod {
	case model.PaymentMethodExternal:
		if strings.TrimSpace(in.ExternalPaymentID) == "" {
			return nil, ErrInvalidRequest
		}
		existing, err := s.paidBy(ctx, in)
		if err != nil || existing != nil {
			return existing, err
		}
	case model.PaymentMethodBalance:
	default:
		return nil, ErrInvalidRequest
	}

	at := s.now()

	listing, err := s.stores.Listings.GetByID(ctx, s.db, in.ListingID)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(listing, in, at); err != nil {
		return nil, err
	}

	var capture *model.Capture
	if in.PaymentMethod == model.PaymentMethodExternal {
		capture, err = s.verifyCapture(ctx, in.ExternalPaymentID)
		if err != nil {
			return nil, err
		}
	}

	booking, err := s.persist(ctx, in, capture, at)
	if err != nil {
		if capture == nil {
			return nil, err
		}
		if errors.Is(err, ErrPaymentAlreadyUsed) {
			// A concurrent retry with the same capture won the insert.
			if existing, lookupErr := s.paidBy(ctx, in); lookupErr == nil && existing != nil {
				return existing, nil
			}
			return nil, err
		}
		s.compensate(ctx, capture, err)
		return nil, err
	}

	log.Info().
		Str("booking_id", booking.ID).
		Str("listing_id", booking.ListingID).
		Str("guest_id", booking.GuestID).
		Str("payment_method", string(booking.PaymentMethod)).
		Int64("total_cents", booking.TotalPrice).
		Msg("booking created")

	return booking, nil
}

// paidBy returns the booking already bound to the request's capture, if any.
func (s *CheckoutService) paidBy(ctx context.Context, in CreatePaidBookingInput) (*model.Booking, error) {
	existing, err := s.stores.Bookings.GetByExternalPaymentID(ctx, s.db, in.ExternalPaymentID)
	if err != nil {
		return nil, fmt.Errorf("lookup payment: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.GuestID != in.GuestID || existing.ListingID != in.ListingID {
		return nil, ErrPaymentAlreadyUsed
	}
	return existing, nil
}

func validateRequest(listing *model.Listing, in CreatePaidBookingInput, at time.Time) error {
	if listing.HostID == in.GuestID {
		return ErrSelfBooking
	}
	if in.GuestCount > listing.MaxGuests {
		return fmt.Errorf("%w: max %d", ErrGuestLimit, listing.MaxGuests)
	}
	return availability.ValidateRange(in.CheckIn, in.CheckOut, at)
}

// verifyCapture trusts a capture only in the provider's completed state.
func (s *CheckoutService) verifyCapture(ctx context.Context, captureID string) (*model.Capture, error) {
	capture, err := s.payments.GetCapture(ctx, captureID)
	if err != nil {
		if errors.Is(err, payment.ErrCaptureNotFound) {
			return nil, fmt.Errorf("%w: capture %s not found", ErrPaymentNotCompleted, captureID)
		}
		return nil, fmt.Errorf("get capture: %w", err)
	}
	if !strings.EqualFold(capture.Status, model.CaptureStatusCompleted) {
		return nil, fmt.Errorf("%w: capture %s is %s", ErrPaymentNotCompleted, captureID, capture.Status)
	}
	return capture, nil
}

// persist re-validates under the listing lock, prices the stay, takes the
// payment and inserts the booking in one transaction.
func (s *CheckoutService) persist(ctx context.Context, in CreatePaidBookingInput, capture *model.Capture, at time.Time) (*model.Booking, error) {
	var booking *model.Booking

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		listing, err := s.stores.Listings.GetForUpdate(ctx, tx, in.ListingID)
		if err != nil {
			return err
		}
		if err := validateRequest(listing, in, at); err != nil {
			return err
		}

		confirmed, err := s.stores.Bookings.ListByListing(ctx, tx, listing.ID, model.BookingStatusConfirmed)
		if err != nil {
			return fmt.Errorf("list confirmed bookings: %w", err)
		}
		blocked, err := s.stores.Listings.BlockedDates(ctx, tx, listing.ID)
		if err != nil {
			return fmt.Errorf("get blocked dates: %w", err)
		}
		checkIn, checkOut := availability.Day(in.CheckIn), availability.Day(in.CheckOut)
		if err := availability.Check(availability.Request{
			CheckIn:  checkIn,
			CheckOut: checkOut,
			Today:    at,
			Bookings: confirmed,
			Blocked:  blocked,
		}); err != nil {
			return err
		}

		subtotal := int64(model.Nights(checkIn, checkOut)) * listing.PricePerNight
		b := &model.Booking{
			ID:            uuid.NewString(),
			ListingID:     listing.ID,
			HostID:        listing.HostID,
			GuestID:       in.GuestID,
			CheckIn:       checkIn,
			CheckOut:      checkOut,
			GuestCount:    in.GuestCount,
			PricePerNight: listing.PricePerNight,
			Subtotal:      subtotal,
			Status:        model.BookingStatusPending,
			PaymentStatus: model.PaymentStatusPaid,
			PaymentMethod: in.PaymentMethod,
			CreatedAt:     at,
		}

		d, err := resolveDiscount(ctx, tx, s.stores, listing, in.CouponCode, subtotal, at, true)
		switch {
		case err != nil && discount.IsDiscountError(err):
			log.Info().Err(err).Str("code", in.CouponCode).Str("listing_id", listing.ID).Msg("discount not applied")
		case err != nil:
			return err
		case d != nil:
			b.DiscountAmount = d.Amount
			code := d.Code
			b.CouponCode = &code
		}
		b.TotalPrice = model.TotalAfterDiscount(b.Subtotal, b.DiscountAmount)

		if _, err := s.stores.Accounts.LockForUpdate(ctx, tx, in.GuestID); err != nil {
			return err
		}

		switch in.PaymentMethod {
		case model.PaymentMethodExternal:
			if capture.Amount != b.TotalPrice || !strings.EqualFold(capture.Currency, s.currency) {
				return fmt.Errorf("%w: captured %d %s, total %d %s", ErrPaymentAmountMismatch,
					capture.Amount, capture.Currency, b.TotalPrice, s.currency)
			}
			captureID := capture.ID
			b.ExternalPaymentID = &captureID
		case model.PaymentMethodBalance:
			if _, err := s.stores.Ledger.Post(ctx, tx, model.Posting{
				UserID:         in.GuestID,
				Type:           model.TxBookingPayment,
				Amount:         -b.TotalPrice,
				BookingID:      &b.ID,
				IdempotencyKey: idempotencyKey("booking", b.ID, "payment"),
			}, true); err != nil {
				return err
			}
		}

		if err := s.stores.Bookings.Insert(ctx, tx, b); err != nil {
			return err
		}

		advisory(ctx, tx, "guest points", func(q database.TxQuerier) error {
			_, err := s.stores.Points.Add(ctx, q, model.PointsEntry{
				UserID:   b.GuestID,
				Points:   policy.BookingPoints,
				Action:   model.PointsActionBooking,
				ActionID: b.ID,
			})
			return err
		})

		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// compensate refunds a verified capture that could not be turned into a
// booking for a business reason. Infrastructure failures keep the capture so
// a retry with the same capture id can still create the booking.
func (s *CheckoutService) compensate(ctx context.Context, capture *model.Capture, cause error) {
	if !IsRejection(cause) {
		log.Warn().
			Err(cause).
			Str("capture_id", capture.ID).
			Msg("booking not persisted after capture; retry with the same capture id")
		return
	}

	if err := s.payments.RefundCapture(ctx, capture.ID, capture.Amount); err != nil {
		log.Error().
			Err(err).
			AnErr("cause", cause).
			Str("capture_id", capture.ID).
			Int64("amount_cents", capture.Amount).
			Msg("failed to refund capture for rejected booking")
		return
	}

	log.Info().
		AnErr("cause", cause).
		Str("capture_id", capture.ID).
		Int64("amount_cents", capture.Amount).
		Msg("capture refunded for rejected booking")
}
