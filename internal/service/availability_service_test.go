package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/stays-ledger/internal/model"
)

func newAvailabilityFixture(t *testing.T) (*memDB, *AvailabilityService) {
	t.Helper()
	db := newMemDB()
	seedListing(db)
	confirmed := pendingBooking("b-0", "2026-03-10", "2026-03-12")
	confirmed.Status = model.BookingStatusConfirmed
	db.putBooking(confirmed)
	db.putBooking(pendingBooking("b-1", "2026-03-20", "2026-03-22"))
	db.block("l-1", day("2026-03-15"))

	svc := NewAvailabilityService(db, db.stores())
	svc.now = func() time.Time { return testNow }
	return db, svc
}

func TestAvailabilityService_CheckAvailability(t *testing.T) {
	_, svc := newAvailabilityFixture(t)

	tests := []struct {
		name    string
		in, out string
		wantErr error
		listing string
	}{
		{"free range", "2026-03-05", "2026-03-08", nil, "l-1"},
		{"ends on confirmed check-in", "2026-03-08", "2026-03-10", nil, "l-1"},
		{"starts on confirmed check-out", "2026-03-12", "2026-03-14", nil, "l-1"},
		{"overlaps confirmed", "2026-03-11", "2026-03-13", ErrDateConflict, "l-1"},
		{"pending does not block", "2026-03-20", "2026-03-22", nil, "l-1"},
		{"contains blocked night", "2026-03-14", "2026-03-16", ErrBlockedByHost, "l-1"},
		{"checks out on blocked day", "2026-03-13", "2026-03-15", nil, "l-1"},
		{"in the past", "2026-02-20", "2026-02-22", ErrCheckInPast, "l-1"},
		{"inverted", "2026-03-08", "2026-03-05", ErrInvalidDates, "l-1"},
		{"unknown listing", "2026-03-05", "2026-03-08", ErrListingNotFound, "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CheckAvailability(context.Background(), tt.listing, day(tt.in), day(tt.out))
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAvailabilityService_Calendar(t *testing.T) {
	_, svc := newAvailabilityFixture(t)

	cal, err := svc.Calendar(context.Background(), "l-1")
	require.NoError(t, err)
	assert.Equal(t, "l-1", cal.ListingID)
	assert.Equal(t, []string{"2026-03-10", "2026-03-11", "2026-03-12", "2026-03-15"}, cal.BookedDays)
}
