// Package availability decides whether a listing can take a new stay for a
// date range, and renders the booked-days view used by calendars.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jinzhu/now"

	"github.com/fairyhunter13/stays-ledger/internal/model"
)

// DayLayout is the wire format of calendar dates.
const DayLayout = "2006-01-02"

var (
	// ErrInvalidRange is returned when check-out is not after check-in.
	ErrInvalidRange = errors.New("check-out must be after check-in")

	// ErrCheckInPast is returned when check-in is before today.
	ErrCheckInPast = errors.New("check-in date is in the past")

	// ErrDateConflict is returned when the range overlaps a confirmed booking.
	ErrDateConflict = errors.New("dates conflict with an existing booking")

	// ErrBlockedByHost is returned when the range contains a host-blocked date.
	ErrBlockedByHost = errors.New("dates blocked by host")
)

// Day truncates t to the start of its UTC calendar day.
func Day(t time.Time) time.Time {
	return now.With(t.UTC()).BeginningOfDay()
}

// ParseDay parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDay renders a calendar date as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// Request is a proposed stay checked against a listing's state.
type Request struct {
	CheckIn  time.Time
	CheckOut time.Time
	Today    time.Time

	// Bookings are the listing's existing bookings; only confirmed ones block.
	Bookings []*model.Booking

	// Blocked are host-blocked calendar dates.
	Blocked []time.Time

	// ExcludeBookingID skips one booking, used when re-checking a booking
	// against the rest of the listing on acceptance.
	ExcludeBookingID string
}

// ValidateRange checks date sanity on its own.
func ValidateRange(checkIn, checkOut, today time.Time) error {
	checkIn, checkOut, today = Day(checkIn), Day(checkOut), Day(today)
	if checkIn.Before(today) {
		return ErrCheckInPast
	}
	if !checkOut.After(checkIn) {
		return ErrInvalidRange
	}
	return nil
}

// Check returns nil when the range is bookable. Rejections wrap ErrInvalidRange,
// ErrCheckInPast, ErrDateConflict or ErrBlockedByHost.
func Check(req Request) error {
	if err := ValidateRange(req.CheckIn, req.CheckOut, req.Today); err != nil {
		return err
	}
	if err := CheckConflicts(req.CheckIn, req.CheckOut, req.Bookings, req.ExcludeBookingID); err != nil {
		return err
	}
	return CheckBlocked(req.CheckIn, req.CheckOut, req.Blocked)
}

// CheckConflicts rejects a range overlapping any confirmed booking.
// A check-out day equal to another booking's check-in day is not a conflict.
func CheckConflicts(checkIn, checkOut time.Time, bookings []*model.Booking, excludeID string) error {
	checkIn, checkOut = Day(checkIn), Day(checkOut)
	for _, b := range bookings {
		if b.ID == excludeID || b.Status != model.BookingStatusConfirmed {
			continue
		}
		if Overlaps(checkIn, checkOut, Day(b.CheckIn), Day(b.CheckOut)) {
			return fmt.Errorf("%w: booking %s (%s to %s)", ErrDateConflict,
				b.ID, FormatDay(b.CheckIn), FormatDay(b.CheckOut))
		}
	}
	return nil
}

// CheckBlocked rejects a range containing a host-blocked night.
func CheckBlocked(checkIn, checkOut time.Time, blocked []time.Time) error {
	if len(blocked) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(blocked))
	for _, d := range blocked {
		set[FormatDay(d)] = struct{}{}
	}
	for _, day := range Nights(checkIn, checkOut) {
		if _, ok := set[day]; ok {
			return fmt.Errorf("%w: %s", ErrBlockedByHost, day)
		}
	}
	return nil
}

// Overlaps compares half-open ranges [aStart, aEnd) and [bStart, bEnd).
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Nights expands [checkIn, checkOut) into the calendar days slept.
func Nights(checkIn, checkOut time.Time) []string {
	checkIn, checkOut = Day(checkIn), Day(checkOut)
	var days []string
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		days = append(days, FormatDay(d))
	}
	return days
}

// CalendarDays returns the sorted days a calendar renders as booked: both
// endpoints of every confirmed booking plus the host-blocked dates. This is a
// display convention; conflicts are decided by CheckConflicts.
func CalendarDays(bookings []*model.Booking, blocked []time.Time) []string {
	set := make(map[string]struct{})
	for _, b := range bookings {
		if b.Status != model.BookingStatusConfirmed {
			continue
		}
		end := Day(b.CheckOut)
		for d := Day(b.CheckIn); !d.After(end); d = d.AddDate(0, 0, 1) {
			set[FormatDay(d)] = struct{}{}
		}
	}
	for _, d := range blocked {
		set[FormatDay(d)] = struct{}{}
	}

	days := make([]string, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}
