package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

const couponColumns = `code, host_id, discount_percentage, active, start_date, end_date, max_uses`

// CouponRepository provides data access for host coupons using pgx.
type CouponRepository struct{}

// NewCouponRepository creates a new CouponRepository.
func NewCouponRepository() *CouponRepository {
	return &CouponRepository{}
}

// GetByCode retrieves a coupon by code, case-insensitively.
// Returns nil, nil if the coupon is not found (the resolver reports it).
func (r *CouponRepository) GetByCode(ctx context.Context, q database.TxQuerier, code string) (*model.Coupon, error) {
	return r.get(ctx, q, `SELECT `+couponColumns+` FROM coupons WHERE UPPER(code) = UPPER($1)`, code)
}

// GetByCodeForUpdate retrieves a coupon with a row lock so usage counting and
// the booking insert that consumes it happen atomically.
func (r *CouponRepository) GetByCodeForUpdate(ctx context.Context, q database.TxQuerier, code string) (*model.Coupon, error) {
	return r.get(ctx, q, `SELECT `+couponColumns+` FROM coupons WHERE UPPER(code) = UPPER($1) FOR UPDATE`, code)
}

func (r *CouponRepository) get(ctx context.Context, q database.TxQuerier, query, code string) (*model.Coupon, error) {
	var c model.Coupon
	err := q.QueryRow(ctx, query, code).Scan(
		&c.Code,
		&c.HostID,
		&c.DiscountPercentage,
		&c.Active,
		&c.StartDate,
		&c.EndDate,
		&c.MaxUses,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon %s: %w", code, err)
	}
	return &c, nil
}
