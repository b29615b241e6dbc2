package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/stays-ledger/internal/model"
	"github.com/fairyhunter13/stays-ledger/internal/service"
	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

const listingColumns = `id, host_id, title, price_per_night_cents, max_guests,
	promo_code, promo_discount_percent, promo_max_uses`

// ListingRepository reads listings and host-blocked dates. Listing CRUD lives
// elsewhere; this side only reads what checkout needs.
type ListingRepository struct{}

// NewListingRepository creates a new ListingRepository.
func NewListingRepository() *ListingRepository {
	return &ListingRepository{}
}

// GetByID retrieves a listing. Returns service.ErrListingNotFound if it does not exist.
func (r *ListingRepository) GetByID(ctx context.Context, q database.TxQuerier, id string) (*model.Listing, error) {
	return r.get(ctx, q, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
}

// GetForUpdate retrieves a listing with a row lock (SELECT FOR UPDATE).
// Holding it serializes booking creation and acceptance per listing.
func (r *ListingRepository) GetForUpdate(ctx context.Context, q database.TxQuerier, id string) (*model.Listing, error) {
	return r.get(ctx, q, `SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, id)
}

func (r *ListingRepository) get(ctx context.Context, q database.TxQuerier, query, id string) (*model.Listing, error) {
	var l model.Listing
	err := q.QueryRow(ctx, query, id).Scan(
		&l.ID,
		&l.HostID,
		&l.Title,
		&l.PricePerNight,
		&l.MaxGuests,
		&l.PromoCode,
		&l.PromoDiscountPercent,
		&l.PromoMaxUses,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrListingNotFound
		}
		return nil, fmt.Errorf("get listing %s: %w", id, err)
	}
	return &l, nil
}

// BlockedDates returns the host-blocked calendar dates of a listing.
func (r *ListingRepository) BlockedDates(ctx context.Context, q database.TxQuerier, listingID string) ([]time.Time, error) {
	rows, err := q.Query(ctx, `SELECT day FROM listing_blocked_dates WHERE listing_id = $1 ORDER BY day`, listingID)
	if err != nil {
		return nil, fmt.Errorf("get blocked dates for %s: %w", listingID, err)
	}
	defer rows.Close()

	days := []time.Time{}
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan blocked date: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocked dates: %w", err)
	}
	return days, nil
}
