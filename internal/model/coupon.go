package model

import "time"

// Coupon is a host-issued discount code.
// StartDate and EndDate are inclusive calendar dates.
type Coupon struct {
	Code               string    `json:"code"`
	HostID             string    `json:"host_id"`
	DiscountPercentage int       `json:"discount_percentage"`
	Active             bool      `json:"active"`
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	MaxUses            *int      `json:"max_uses,omitempty"`
}

// DiscountSource says whether a discount came from the listing promo or a host coupon.
type DiscountSource string

const (
	DiscountSourcePromo  DiscountSource = "promo"
	DiscountSourceCoupon DiscountSource = "coupon"
)

// Discount is a resolved, applicable discount.
type Discount struct {
	Code    string         `json:"code"`
	Source  DiscountSource `json:"source"`
	Percent int            `json:"percent"`
	Amount  int64          `json:"amount_cents"`
}

// DiscountRequest is the DTO for POST /api/listings/:id/discount.
type DiscountRequest struct {
	Code     string `json:"code" validate:"required,notblank,max=64"`
	CheckIn  string `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut string `json:"check_out" validate:"required,datetime=2006-01-02"`
}

// Quote is a priced stay with an optional discount applied.
type Quote struct {
	Nights        int       `json:"nights"`
	PricePerNight int64     `json:"price_per_night_cents"`
	Subtotal      int64     `json:"subtotal_cents"`
	Discount      *Discount `json:"discount,omitempty"`
	DiscountError string    `json:"discount_error,omitempty"`
	Total         int64     `json:"total_cents"`
}
