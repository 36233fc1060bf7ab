package booking

import (
	"context"

	"stayreserve/internal/domain"
)

// Reservations is the per-apartment serialized write path.
type Reservations interface {
	Reserve(ctx context.Context, apartmentID, guestID int64, r domain.DateRange, totalPrice float64) (*domain.Booking, error)
	ReleaseBooking(ctx context.Context, bookingID string) (*domain.Booking, error)
	Available(ctx context.Context, apartmentID int64, r domain.DateRange) (bool, error)
	BusyRanges(ctx context.Context, apartmentID int64) ([]domain.DateRange, error)
}

// BookingReader reads committed bookings straight from the store.
type BookingReader interface {
	Get(ctx context.Context, id string) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error)
	ListAll(ctx context.Context) ([]domain.Booking, error)
}
