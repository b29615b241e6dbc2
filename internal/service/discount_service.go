package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fairyhunter13/stays-ledger/internal/availability"
	"github.com/fairyhunter13/stays-ledger/internal/discount"
	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

// DiscountService prices a stay with a promo or coupon code.
type DiscountService struct {
	db     DB
	stores Stores
	now    Clock
}

// NewDiscountService creates a new DiscountService.
func NewDiscountService(db DB, stores Stores) *DiscountService {
	return &DiscountService{db: db, stores: stores, now: time.Now}
}

// ResolveDiscount quotes the stay and applies code to it. A code that does not
// apply returns the quote without a discount together with one of the
// discount package errors; checkout treats that as "no discount".
func (s *DiscountService) ResolveDiscount(ctx context.Context, listingID, code string, checkIn, checkOut time.Time) (*model.Quote, error) {
	checkIn, checkOut = availability.Day(checkIn), availability.Day(checkOut)
	if !checkOut.After(checkIn) {
		return nil, ErrInvalidDates
	}

	listing, err := s.stores.Listings.GetByID(ctx, s.db, listingID)
	if err != nil {
		return nil, err
	}

	nights := model.Nights(checkIn, checkOut)
	subtotal := int64(nights) * listing.PricePerNight
	quote := &model.Quote{
		Nights:        nights,
		PricePerNight: listing.PricePerNight,
		Subtotal:      subtotal,
		Total:         subtotal,
	}

	d, err := resolveDiscount(ctx, s.db, s.stores, listing, code, subtotal, s.now(), false)
	if err != nil {
		if discount.IsDiscountError(err) {
			quote.DiscountError = err.Error()
		}
		return quote, err
	}
	if d != nil {
		quote.Discount = d
		quote.Total = model.TotalAfterDiscount(subtotal, d.Amount)
	}
	return quote, nil
}

// resolveDiscount checks the listing promo first, then the host coupons.
// With lock set, the coupon row is locked so usage counting and the booking
// insert that consumes a use are atomic; the listing lock covers promos.
func resolveDiscount(ctx context.Context, q database.TxQuerier, stores Stores, listing *model.Listing, code string, subtotal int64, at time.Time, lock bool) (*model.Discount, error) {
	code = discount.Normalize(code)
	if code == "" {
		return nil, nil
	}

	if discount.MatchesPromo(listing, code) {
		uses, err := stores.Bookings.CountPromoUses(ctx, q, listing.ID, code)
		if err != nil {
			return nil, fmt.Errorf("count promo uses: %w", err)
		}
		return discount.ApplyPromo(listing, subtotal, uses)
	}

	getCoupon := stores.Coupons.GetByCode
	if lock {
		getCoupon = stores.Coupons.GetByCodeForUpdate
	}
	coupon, err := getCoupon(ctx, q, code)
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}

	uses := 0
	if coupon != nil && coupon.MaxUses != nil {
		uses, err = stores.Bookings.CountCouponUses(ctx, q, coupon.HostID, code)
		if err != nil {
			return nil, fmt.Errorf("count coupon uses: %w", err)
		}
	}
	return discount.ApplyCoupon(coupon, listing.HostID, subtotal, uses, at)
}
