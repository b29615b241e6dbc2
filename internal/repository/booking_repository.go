package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/internal/service"
	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

const bookingColumns = `id::text, listing_id, host_id, guest_id, check_in, check_out, guest_count,
	price_per_night_cents, subtotal_cents, discount_cents, coupon_code, total_cents,
	status, payment_status, payment_method, external_payment_id,
	created_at, updated_at, cancelled_at`

// BookingRepository provides data access for bookings using pgx.
type BookingRepository struct{}

// NewBookingRepository creates a new BookingRepository.
func NewBookingRepository() *BookingRepository {
	return &BookingRepository{}
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.ListingID,
		&b.HostID,
		&b.GuestID,
		&b.CheckIn,
		&b.CheckOut,
		&b.GuestCount,
		&b.PricePerNight,
		&b.Subtotal,
		&b.DiscountAmount,
		&b.CouponCode,
		&b.TotalPrice,
		&b.Status,
		&b.PaymentStatus,
		&b.PaymentMethod,
		&b.ExternalPaymentID,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Insert persists a new booking. An empty ID is filled with a fresh UUID and
// CreatedAt is left as given: it is the anchor of the refund window.
// Returns service.ErrPaymentAlreadyUsed if the external payment id is already bound.
func (r *BookingRepository) Insert(ctx context.Context, q database.TxQuerier, b *model.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	query := `INSERT INTO bookings (
		id, listing_id, host_id, guest_id, check_in, check_out, guest_count,
		price_per_night_cents, subtotal_cents, discount_cents, coupon_code, total_cents,
		status, payment_status, payment_method, external_payment_id, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := q.Exec(ctx, query,
		b.ID, b.ListingID, b.HostID, b.GuestID, b.CheckIn, b.CheckOut, b.GuestCount,
		b.PricePerNight, b.Subtotal, b.DiscountAmount, b.CouponCode, b.TotalPrice,
		b.Status, b.PaymentStatus, b.PaymentMethod, b.ExternalPaymentID, b.CreatedAt,
	)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) && constraintName(err) == "bookings_external_payment_id_key" {
			return service.ErrPaymentAlreadyUsed
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// GetByID retrieves a booking. Returns service.ErrBookingNotFound if it does not exist
// or id is not a UUID.
func (r *BookingRepository) GetByID(ctx context.Context, q database.TxQuerier, id string) (*model.Booking, error) {
	if !validBookingID(id) {
		return nil, service.ErrBookingNotFound
	}
	return r.getOne(ctx, q, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// GetForUpdate retrieves a booking with a row lock.
func (r *BookingRepository) GetForUpdate(ctx context.Context, q database.TxQuerier, id string) (*model.Booking, error) {
	if !validBookingID(id) {
		return nil, service.ErrBookingNotFound
	}
	return r.getOne(ctx, q, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

// GetByExternalPaymentID finds the booking bound to a provider capture.
// Returns nil, nil when no booking uses it.
func (r *BookingRepository) GetByExternalPaymentID(ctx context.Context, q database.TxQuerier, paymentID string) (*model.Booking, error) {
	b, err := r.getOne(ctx, q, `SELECT `+bookingColumns+` FROM bookings WHERE external_payment_id = $1`, paymentID)
	if errors.Is(err, service.ErrBookingNotFound) {
		return nil, nil
	}
	return b, err
}

// validBookingID reports whether id can match the uuid primary key. Anything
// else cannot exist, so it is not sent to the database.
func validBookingID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *BookingRepository) getOne(ctx context.Context, q database.TxQuerier, query, arg string) (*model.Booking, error) {
	b, err := scanBooking(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking %s: %w", arg, err)
	}
	return b, nil
}

// ListByListing returns a listing's bookings, optionally filtered by status.
func (r *BookingRepository) ListByListing(ctx context.Context, q database.TxQuerier, listingID string, statuses ...model.BookingStatus) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE listing_id = $1`
	args := []any{listingID}
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		query += ` AND status = ANY($2)`
		args = append(args, names)
	}
	query += ` ORDER BY check_in`

	return r.list(ctx, q, query, args...)
}

// ListByUser returns the bookings a user made as guest, or received as host.
func (r *BookingRepository) ListByUser(ctx context.Context, q database.TxQuerier, userID string, asHost bool) ([]*model.Booking, error) {
	column := "guest_id"
	if asHost {
		column = "host_id"
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + column + ` = $1 ORDER BY created_at DESC`
	return r.list(ctx, q, query, userID)
}

func (r *BookingRepository) list(ctx context.Context, q database.TxQuerier, query string, args ...any) ([]*model.Booking, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	bookings := []*model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}

// CountPromoUses counts prior bookings on a listing carrying the promo code.
func (r *BookingRepository) CountPromoUses(ctx context.Context, q database.TxQuerier, listingID, code string) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE listing_id = $1 AND UPPER(coupon_code) = UPPER($2)`,
		listingID, code).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count promo uses %s: %w", code, err)
	}
	return n, nil
}

// CountCouponUses counts prior bookings across a host's listings carrying the coupon code.
func (r *BookingRepository) CountCouponUses(ctx context.Context, q database.TxQuerier, hostID, code string) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE host_id = $1 AND UPPER(coupon_code) = UPPER($2)`,
		hostID, code).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count coupon uses %s: %w", code, err)
	}
	return n, nil
}

// UpdateStatus moves a booking to a new status. Cancellation also stamps cancelled_at.
// Must be called within a transaction after locking the row.
func (r *BookingRepository) UpdateStatus(ctx context.Context, q database.TxQuerier, id string, status model.BookingStatus, at time.Time) error {
	query := `UPDATE bookings SET status = $2, updated_at = $3,
		cancelled_at = CASE WHEN $2 = 'cancelled' THEN $3 ELSE cancelled_at END
		WHERE id = $1`

	if !validBookingID(id) {
		return service.ErrBookingNotFound
	}
	tag, err := q.Exec(ctx, query, id, string(status), at)
	if err != nil {
		if isPgCode(err, pgCheckViolation) {
			return fmt.Errorf("update booking %s to %s: %w", id, status, service.ErrUnpaid)
		}
		return fmt.Errorf("update booking %s to %s: %w", id, status, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrBookingNotFound
	}
	return nil
}
