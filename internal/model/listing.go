package model

import "time"

// Listing is the read-side view of a stay or experience needed at checkout.
type Listing struct {
	ID                   string  `json:"id"`
	HostID               string  `json:"host_id"`
	Title                string  `json:"title"`
	PricePerNight        int64   `json:"price_per_night_cents"`
	MaxGuests            int     `json:"max_guests"`
	PromoCode            *string `json:"promo_code,omitempty"`
	PromoDiscountPercent int     `json:"promo_discount_percent"`
	PromoMaxUses         *int    `json:"promo_max_uses,omitempty"`
}

// AvailabilityResponse is returned by GET /api/listings/:id/availability.
type AvailabilityResponse struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// CalendarResponse lists the days a calendar should render as booked.
type CalendarResponse struct {
	ListingID  string   `json:"listing_id"`
	BookedDays []string `json:"booked_days"`
}

// DateRange is a check-in/check-out pair of calendar dates.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}
