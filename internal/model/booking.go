package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// IsTerminal reports whether no further transition is accepted from the status.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusRejected, BookingStatusCancelled, BookingStatusCompleted:
		return true
	default:
		return false
	}
}

// PaymentStatus tracks whether the booking's money has been secured.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// PaymentMethod names the path that authorized payment at checkout.
type PaymentMethod string

const (
	PaymentMethodExternal PaymentMethod = "external"
	PaymentMethodBalance  PaymentMethod = "balance"
)

// Booking is one guest's reservation of a listing for a date range.
// CheckIn and CheckOut are calendar dates stored at UTC midnight.
// Money fields are in cents.
type Booking struct {
	ID                string        `json:"id"`
	ListingID         string        `json:"listing_id"`
	HostID            string        `json:"host_id"`
	GuestID           string        `json:"guest_id"`
	CheckIn           time.Time     `json:"check_in"`
	CheckOut          time.Time     `json:"check_out"`
	GuestCount        int           `json:"guest_count"`
	PricePerNight     int64         `json:"price_per_night_cents"`
	Subtotal          int64         `json:"subtotal_cents"`
	DiscountAmount    int64         `json:"discount_cents"`
	CouponCode        *string       `json:"coupon_code,omitempty"`
	TotalPrice        int64         `json:"total_cents"`
	Status            BookingStatus `json:"status"`
	PaymentStatus     PaymentStatus `json:"payment_status"`
	PaymentMethod     PaymentMethod `json:"payment_method"`
	ExternalPaymentID *string       `json:"external_payment_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         *time.Time    `json:"updated_at,omitempty"`
	CancelledAt       *time.Time    `json:"cancelled_at,omitempty"`
}

// Nights returns the number of nights between check-in and check-out.
func (b *Booking) Nights() int {
	return Nights(b.CheckIn, b.CheckOut)
}

// EffectiveStatus reports completed for a confirmed booking whose check-out
// date is before today. Completion is driven by the calendar, not stored.
func (b *Booking) EffectiveStatus(today time.Time) BookingStatus {
	if b.Status == BookingStatusConfirmed && b.CheckOut.Before(today) {
		return BookingStatusCompleted
	}
	return b.Status
}

// Nights counts calendar days between two dates.
func Nights(checkIn, checkOut time.Time) int {
	return int(checkOut.Sub(checkIn).Hours() / 24)
}

// TotalAfterDiscount applies a discount without letting the total go negative.
func TotalAfterDiscount(subtotal, discount int64) int64 {
	if discount >= subtotal {
		return 0
	}
	return subtotal - discount
}

// CreateBookingRequest is the DTO for POST /api/bookings.
type CreateBookingRequest struct {
	ListingID         string `json:"listing_id" validate:"required,notblank,max=255"`
	CheckIn           string `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut          string `json:"check_out" validate:"required,datetime=2006-01-02"`
	GuestCount        int    `json:"guest_count" validate:"required,gte=1"`
	CouponCode        string `json:"coupon_code" validate:"max=64"`
	PaymentMethod     string `json:"payment_method" validate:"required,oneof=external balance"`
	ExternalPaymentID string `json:"external_payment_id" validate:"required_if=PaymentMethod external,max=255"`
}

// TransitionResponse reports a booking after a host or guest decision and
// the money each party moved. Amounts are in cents; zero fields are omitted.
type TransitionResponse struct {
	Booking      *Booking `json:"booking"`
	HostCredit   int64    `json:"host_credit_cents,omitempty"`
	GuestRefund  int64    `json:"guest_refund_cents,omitempty"`
	RetainedFee  int64    `json:"retained_fee_cents,omitempty"`
	HostClawback int64    `json:"host_clawback_cents,omitempty"`
}
