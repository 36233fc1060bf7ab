package domain

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// DateRange is a half-open interval [CheckIn, CheckOut) over calendar dates.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// NewDateRange truncates both ends to midnight UTC and validates CheckIn < CheckOut.
func NewDateRange(checkIn, checkOut time.Time) (DateRange, error) {
	r := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// ParseDateRange parses two YYYY-MM-DD dates.
func ParseDateRange(checkIn, checkOut string) (DateRange, error) {
	in, err := time.Parse(DateLayout, checkIn)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: check_in %q", ErrInvalidRange, checkIn)
	}
	out, err := time.Parse(DateLayout, checkOut)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: check_out %q", ErrInvalidRange, checkOut)
	}
	return NewDateRange(in, out)
}

// Day returns t's calendar date at midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r DateRange) Validate() error {
	if !r.CheckIn.Before(r.CheckOut) {
		return fmt.Errorf("%w: check_in must be before check_out", ErrInvalidRange)
	}
	return nil
}

// Overlaps reports whether r and o share at least one night.
// Back-to-back stays (r.CheckOut == o.CheckIn) do not overlap.
func (r DateRange) Overlaps(o DateRange) bool {
	return r.CheckIn.Before(o.CheckOut) && o.CheckIn.Before(r.CheckOut)
}

func (r DateRange) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
}

func (r DateRange) String() string {
	return "[" + r.CheckIn.Format(DateLayout) + ", " + r.CheckOut.Format(DateLayout) + ")"
}

type Booking struct {
	ID          string    `json:"id"`
	ApartmentID int64     `json:"apartment_id"`
	GuestID     int64     `json:"guest_id"`
	CheckIn     time.Time `json:"check_in"`
	CheckOut    time.Time `json:"check_out"`
	TotalPrice  float64   `json:"total_price"`
	CreatedAt   time.Time `json:"created_at"`
}

func (b *Booking) Range() DateRange {
	return DateRange{CheckIn: b.CheckIn, CheckOut: b.CheckOut}
}

// Apartment is the catalog's view of a bookable unit. This service never writes it.
type Apartment struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	NightlyPrice float64 `json:"nightly_price"`
	Available    bool    `json:"available"`
}
