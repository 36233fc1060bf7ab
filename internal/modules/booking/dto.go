package booking

import (
	"time"

	"stayreserve/internal/domain"
)

type CreateBookingRequest struct {
	ApartmentID int64   `json:"apartment_id" validate:"required,gt=0"`
	CheckIn     string  `json:"check_in" validate:"required,date"`
	CheckOut    string  `json:"check_out" validate:"required,date"`
	TotalPrice  float64 `json:"total_price" validate:"gte=0"`
	// GuestID may be sent by older clients; it must match the caller.
	GuestID int64 `json:"guest_id" validate:"gte=0"`
}

type CreateBookingInput struct {
	ApartmentID int64
	GuestID     int64
	Range       domain.DateRange
	TotalPrice  float64
}

type BookingResponse struct {
	ID          string    `json:"id"`
	ApartmentID int64     `json:"apartment_id"`
	GuestID     int64     `json:"guest_id"`
	CheckIn     string    `json:"check_in"`
	CheckOut    string    `json:"check_out"`
	Nights      int       `json:"nights"`
	TotalPrice  float64   `json:"total_price"`
	CreatedAt   time.Time `json:"created_at"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:          b.ID,
		ApartmentID: b.ApartmentID,
		GuestID:     b.GuestID,
		CheckIn:     b.CheckIn.Format(domain.DateLayout),
		CheckOut:    b.CheckOut.Format(domain.DateLayout),
		Nights:      b.Range().Nights(),
		TotalPrice:  b.TotalPrice,
		CreatedAt:   b.CreatedAt,
	}
}

func toBookingResponses(bs []domain.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bs))
	for i := range bs {
		out = append(out, toBookingResponse(&bs[i]))
	}
	return out
}

type AvailabilityResponse struct {
	ApartmentID int64  `json:"apartment_id"`
	CheckIn     string `json:"check_in"`
	CheckOut    string `json:"check_out"`
	Available   bool   `json:"available"`
}

type DateRangeDTO struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

type BusyDatesResponse struct {
	ApartmentID int64          `json:"apartment_id"`
	Ranges      []DateRangeDTO `json:"ranges"`
}
