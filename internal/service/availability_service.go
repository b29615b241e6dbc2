package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fairyhunter13/stays-ledger/internal/availability"
	"github.com/fairyhunter13/stays-ledger/internal/model"
)

// AvailabilityService answers availability and calendar queries for a listing.
type AvailabilityService struct {
	db     DB
	stores Stores
	now    Clock
}

// NewAvailabilityService creates a new AvailabilityService.
func NewAvailabilityService(db DB, stores Stores) *AvailabilityService {
	return &AvailabilityService{db: db, stores: stores, now: time.Now}
}

// CheckAvailability returns nil when the range is bookable, or one of
// ErrInvalidDates, ErrCheckInPast, ErrDateConflict, ErrBlockedByHost.
// The answer is advisory; checkout re-checks under the listing lock.
func (s *AvailabilityService) CheckAvailability(ctx context.Context, listingID string, checkIn, checkOut time.Time) error {
	if _, err := s.stores.Listings.GetByID(ctx, s.db, listingID); err != nil {
		return err
	}

	bookings, err := s.stores.Bookings.ListByListing(ctx, s.db, listingID, model.BookingStatusConfirmed)
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	blocked, err := s.stores.Listings.BlockedDates(ctx, s.db, listingID)
	if err != nil {
		return fmt.Errorf("get blocked dates: %w", err)
	}

	return availability.Check(availability.Request{
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Today:    s.now(),
		Bookings: bookings,
		Blocked:  blocked,
	})
}

// Calendar returns the days a calendar renders as booked.
func (s *AvailabilityService) Calendar(ctx context.Context, listingID string) (*model.CalendarResponse, error) {
	if _, err := s.stores.Listings.GetByID(ctx, s.db, listingID); err != nil {
		return nil, err
	}

	bookings, err := s.stores.Bookings.ListByListing(ctx, s.db, listingID, model.BookingStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	blocked, err := s.stores.Listings.BlockedDates(ctx, s.db, listingID)
	if err != nil {
		return nil, fmt.Errorf("get blocked dates: %w", err)
	}

	return &model.CalendarResponse{
		ListingID:  listingID,
		BookedDays: availability.CalendarDays(bookings, blocked),
	}, nil
}
