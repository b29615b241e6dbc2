// Package discount resolves promo and coupon codes into discount amounts.
package discount

import (
	"errors"
	"strings"
	"time"

	"github.com/jinzhu/now"

	"github.com/fairyhunter13/stays-ledger/internal/model"
)

var (
	ErrNotFound    = errors.New("coupon not found")
	ErrInactive    = errors.New("coupon is inactive")
	ErrWrongHost   = errors.New("coupon does not belong to this host")
	ErrNotYetValid = errors.New("coupon is not yet valid")
	ErrExpired     = errors.New("coupon has expired")
	ErrUsageLimit  = errors.New("coupon usage limit reached")
)

// IsDiscountError reports whether err is one of the resolver's rejections.
func IsDiscountError(err error) bool {
	for _, target := range []error{ErrNotFound, ErrInactive, ErrWrongHost, ErrNotYetValid, ErrExpired, ErrUsageLimit} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Normalize makes codes comparable: trimmed and upper-cased.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Amount computes percent of subtotal in cents, rounding down.
func Amount(subtotal int64, percent int) int64 {
	if percent <= 0 || subtotal <= 0 {
		return 0
	}
	if percent >= 100 {
		return subtotal
	}
	return subtotal * int64(percent) / 100
}

// MatchesPromo reports whether code is the listing's own promo code.
func MatchesPromo(listing *model.Listing, code string) bool {
	if listing == nil || listing.PromoCode == nil {
		return false
	}
	promo := Normalize(*listing.PromoCode)
	return promo != "" && promo == Normalize(code)
}

// ApplyPromo prices the listing promo given how many prior bookings used it.
func ApplyPromo(listing *model.Listing, subtotal int64, uses int) (*model.Discount, error) {
	if listing.PromoMaxUses != nil && uses >= *listing.PromoMaxUses {
		return nil, ErrUsageLimit
	}
	return &model.Discount{
		Code:    Normalize(*listing.PromoCode),
		Source:  model.DiscountSourcePromo,
		Percent: listing.PromoDiscountPercent,
		Amount:  Amount(subtotal, listing.PromoDiscountPercent),
	}, nil
}

// ApplyCoupon validates a host coupon at instant at and prices it.
// The validity window runs from the start of StartDate to the end of EndDate.
func ApplyCoupon(coupon *model.Coupon, hostID string, subtotal int64, uses int, at time.Time) (*model.Discount, error) {
	if coupon == nil {
		return nil, ErrNotFound
	}
	if !coupon.Active {
		return nil, ErrInactive
	}
	if coupon.HostID != hostID {
		return nil, ErrWrongHost
	}

	at = at.UTC()
	if at.Before(now.With(coupon.StartDate.UTC()).BeginningOfDay()) {
		return nil, ErrNotYetValid
	}
	if at.After(now.With(coupon.EndDate.UTC()).EndOfDay()) {
		return nil, ErrExpired
	}

	if coupon.MaxUses != nil && uses >= *coupon.MaxUses {
		return nil, ErrUsageLimit
	}

	return &model.Discount{
		Code:    Normalize(coupon.Code),
		Source:  model.DiscountSourceCoupon,
		Percent: coupon.DiscountPercentage,
		Amount:  Amount(subtotal, coupon.DiscountPercentage),
	}, nil
}
