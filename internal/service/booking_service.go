package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/stays-ledger/internal/availability"
	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/internal/policy"
	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

// Action is a host or guest decision on a booking.
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
	ActionCancel Action = "cancel"
)

// BookingService owns booking status transitions and the ledger postings
// each one makes. Status and money move in one transaction; notifications,
// points and platform bookkeeping are advisory and cannot undo it.
type BookingService struct {
	db     DB
	stores Stores
	now    Clock
}

// NewBookingService creates a new BookingService.
func NewBookingService(db DB, stores Stores) *BookingService {
	return &BookingService{db: db, stores: stores, now: time.Now}
}

// TransitionBooking applies action on behalf of actorID.
func (s *BookingService) TransitionBooking(ctx context.Context, actorID, bookingID string, action Action) (*model.TransitionResponse, error) {
	if actorID == "" || bookingID == "" {
		return nil, ErrInvalidRequest
	}
	switch action {
	case ActionAccept:
		return s.Accept(ctx, actorID, bookingID)
	case ActionReject:
		return s.Reject(ctx, actorID, bookingID)
	case ActionCancel:
		return s.Cancel(ctx, actorID, bookingID)
	default:
		return nil, ErrInvalidRequest
	}
}

// lockPending loads a booking for update and checks the host may decide on it.
func (s *BookingService) lockPending(ctx context.Context, tx pgx.Tx, hostID, bookingID string, today time.Time) (*model.Booking, error) {
	b, err := s.stores.Bookings.GetForUpdate(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.HostID != hostID {
		return nil, ErrForbidden
	}
	if b.EffectiveStatus(today) != model.BookingStatusPending {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.EffectiveStatus(today))
	}
	return b, nil
}

// Accept confirms a pending, paid booking. The listing row is locked and the
// stay re-checked against today, the host's blocked dates and the listing's
// other confirmed bookings, so two overlapping bookings can never both be
// confirmed. The host is credited the full total.
func (s *BookingService) Accept(ctx context.Context, hostID, bookingID string) (*model.TransitionResponse, error) {
	at := s.now()
	var booking *model.Booking

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		b, err := s.lockPending(ctx, tx, hostID, bookingID, availability.Day(at))
		if err != nil {
			return err
		}
		if b.PaymentStatus != model.PaymentStatusPaid {
			return ErrUnpaid
		}

		if _, err := s.stores.Listings.GetForUpdate(ctx, tx, b.ListingID); err != nil {
			return err
		}
		confirmed, err := s.stores.Bookings.ListByListing(ctx, tx, b.ListingID, model.BookingStatusConfirmed)
		if err != nil {
			return fmt.Errorf("list confirmed bookings: %w", err)
		}
		blocked, err := s.stores.Listings.BlockedDates(ctx, tx, b.ListingID)
		if err != nil {
			return fmt.Errorf("get blocked dates: %w", err)
		}
		// A stay that has already started, or that the host blocked after
		// checkout, can no longer be confirmed; the host may still reject it.
		if err := availability.Check(availability.Request{
			CheckIn:          b.CheckIn,
			CheckOut:         b.CheckOut,
			Today:            availability.Day(at),
			Bookings:         confirmed,
			Blocked:          blocked,
			ExcludeBookingID: b.ID,
		}); err != nil {
			return err
		}

		if err := s.stores.Bookings.UpdateStatus(ctx, tx, b.ID, model.BookingStatusConfirmed, at); err != nil {
			return err
		}
		b.Status = model.BookingStatusConfirmed
		b.UpdatedAt = &at

		if _, err := s.stores.Accounts.LockForUpdate(ctx, tx, b.HostID); err != nil {
			return err
		}
		if _, err := s.stores.Ledger.Post(ctx, tx, model.Posting{
			UserID:         b.HostID,
			Type:           model.TxBookingEarnings,
			Amount:         b.TotalPrice,
			BookingID:      &b.ID,
			IdempotencyKey: idempotencyKey("booking", b.ID, "earnings"),
		}, false); err != nil {
			return err
		}

		advisory(ctx, tx, "platform payment entry", func(q database.TxQuerier) error {
			return s.stores.Platform.Record(ctx, q, model.PlatformEntry{
				Kind:           model.PlatformBookingPayment,
				Amount:         b.TotalPrice,
				BookingID:      &b.ID,
				IdempotencyKey: idempotencyKey("booking", b.ID, "platform_payment"),
			})
		})
		advisory(ctx, tx, "host points", func(q database.TxQuerier) error {
			_, err := s.stores.Points.Add(ctx, q, model.PointsEntry{
				UserID:   b.HostID,
				Points:   policy.BookingAcceptedPoints,
				Action:   model.PointsActionBookingAccepted,
				ActionID: b.ID,
			})
			return err
		})
		s.stores.notify(ctx, tx, b,
			notice{topic: model.TopicBookingConfirmed, recipient: b.GuestID,
				message: "Your booking has been confirmed by the host."},
			notice{topic: model.TopicSystemMessage, recipient: b.GuestID,
				message: fmt.Sprintf("Booking confirmed for %s to %s.",
					availability.FormatDay(b.CheckIn), availability.FormatDay(b.CheckOut))},
		)

		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("booking_id", booking.ID).
		Str("host_id", booking.HostID).
		Int64("total_cents", booking.TotalPrice).
		Msg("booking confirmed")

	return &model.TransitionResponse{Booking: booking, HostCredit: booking.TotalPrice}, nil
}

// Reject declines a pending booking and refunds the full total to the guest's
// balance. Nothing was posted to the host while pending, so nothing is reversed.
func (s *BookingService) Reject(ctx context.Context, hostID, bookingID string) (*model.TransitionResponse, error) {
	at := s.now()
	var booking *model.Booking

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		b, err := s.lockPending(ctx, tx, hostID, bookingID, availability.Day(at))
		if err != nil {
			return err
		}

		if err := s.stores.Bookings.UpdateStatus(ctx, tx, b.ID, model.BookingStatusRejected, at); err != nil {
			return err
		}
		b.Status = model.BookingStatusRejected
		b.UpdatedAt = &at

		if b.PaymentStatus == model.PaymentStatusPaid {
			if _, err := s.stores.Accounts.LockForUpdate(ctx, tx, b.GuestID); err != nil {
				return err
			}
			if _, err := s.stores.Ledger.Post(ctx, tx, model.Posting{
				UserID:         b.GuestID,
				Type:           model.TxBookingRefund,
				Amount:         b.TotalPrice,
				BookingID:      &b.ID,
				IdempotencyKey: idempotencyKey("booking", b.ID, "refund"),
			}, false); err != nil {
				return err
			}
		}

		s.stores.notify(ctx, tx, b,
			notice{topic: model.TopicBookingRejected, recipient: b.GuestID, refund: b.TotalPrice,
				message: fmt.Sprintf("Your booking was declined. %s has been returned to your balance.", formatCents(b.TotalPrice))},
		)

		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("booking_id", booking.ID).
		Str("guest_id", booking.GuestID).
		Int64("refund_cents", booking.TotalPrice).
		Msg("booking rejected")

	return &model.TransitionResponse{Booking: booking, GuestRefund: booking.TotalPrice}, nil
}

// Cancel lets the guest cancel a confirmed booking before its check-in day.
// The guest is refunded per the cooling-off policy, the host gives back the
// whole total they were credited on confirmation, and any retained amount is
// recorded as platform revenue.
func (s *BookingService) Cancel(ctx context.Context, guestID, bookingID string) (*model.TransitionResponse, error) {
	at := s.now()
	today := availability.Day(at)
	var resp model.TransitionResponse

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		b, err := s.stores.Bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.GuestID != guestID {
			return ErrForbidden
		}
		if status := b.EffectiveStatus(today); status != model.BookingStatusConfirmed {
			return fmt.Errorf("%w: booking is %s", ErrInvalidTransition, status)
		}
		if !today.Before(availability.Day(b.CheckIn)) {
			return ErrCancellationWindowClosed
		}

		refund := policy.CancellationRefund(b.TotalPrice, b.CreatedAt, at)
		retained := b.TotalPrice - refund

		if err := s.stores.Bookings.UpdateStatus(ctx, tx, b.ID, model.BookingStatusCancelled, at); err != nil {
			return err
		}
		b.Status = model.BookingStatusCancelled
		b.UpdatedAt = &at
		b.CancelledAt = &at

		if _, err := s.stores.Accounts.LockForUpdate(ctx, tx, b.GuestID, b.HostID); err != nil {
			return err
		}
		if refund > 0 {
			if _, err := s.stores.Ledger.Post(ctx, tx, model.Posting{
				UserID:         b.GuestID,
				Type:           model.TxBookingCancellationRefund,
				Amount:         refund,
				BookingID:      &b.ID,
				IdempotencyKey: idempotencyKey("booking", b.ID, "cancellation_refund"),
			}, false); err != nil {
				return err
			}
		}
		if _, err := s.stores.Ledger.Post(ctx, tx, model.Posting{
			UserID:         b.HostID,
			Type:           model.TxBookingCancelled,
			Amount:         -b.TotalPrice,
			BookingID:      &b.ID,
			IdempotencyKey: idempotencyKey("booking", b.ID, "host_clawback"),
		}, false); err != nil {
			return err
		}

		if retained > 0 {
			advisory(ctx, tx, "service fee revenue", func(q database.TxQuerier) error {
				return s.stores.Platform.Record(ctx, q, model.PlatformEntry{
					Kind:           model.PlatformServiceFeeRevenue,
					Amount:         retained,
					BookingID:      &b.ID,
					IdempotencyKey: idempotencyKey("booking", b.ID, "service_fee"),
				})
			})
		}

		outcome := fmt.Sprintf("Booking cancelled by guest. Refund to guest: %s. Service fee retained: %s.",
			formatCents(refund), formatCents(retained))
		s.stores.notify(ctx, tx, b,
			notice{topic: model.TopicBookingCancelled, recipient: b.GuestID, refund: refund, message: outcome},
			notice{topic: model.TopicBookingCancelled, recipient: b.HostID, refund: refund, message: outcome},
			notice{topic: model.TopicSystemMessage, recipient: b.HostID, refund: refund, message: outcome},
		)

		resp = model.TransitionResponse{
			Booking:      b,
			GuestRefund:  refund,
			RetainedFee:  retained,
			HostClawback: b.TotalPrice,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("booking_id", resp.Booking.ID).
		Int64("refund_cents", resp.GuestRefund).
		Int64("retained_cents", resp.RetainedFee).
		Int64("clawback_cents", resp.HostClawback).
		Msg("booking cancelled")

	return &resp, nil
}

// GetBooking returns a booking to its guest or host, with the calendar-derived status.
func (s *BookingService) GetBooking(ctx context.Context, userID, bookingID string) (*model.Booking, error) {
	b, err := s.stores.Bookings.GetByID(ctx, s.db, bookingID)
	if err != nil {
		return nil, err
	}
	if b.GuestID != userID && b.HostID != userID {
		return nil, ErrForbidden
	}
	b.Status = b.EffectiveStatus(availability.Day(s.now()))
	return b, nil
}

// ListBookings returns the bookings a user made as guest, or received as host.
func (s *BookingService) ListBookings(ctx context.Context, userID string, asHost bool) ([]*model.Booking, error) {
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	bookings, err := s.stores.Bookings.ListByUser(ctx, s.db, userID, asHost)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	today := availability.Day(s.now())
	for _, b := range bookings {
		b.Status = b.EffectiveStatus(today)
	}
	return bookings, nil
}
