package booking

import (
	"context"
	"errors"
	"time"

	"stayreserve/internal/authz"
	"stayreserve/internal/domain"
	"stayreserve/internal/events"
	"stayreserve/internal/metrics"

	"go.uber.org/zap"
)

const publishTimeout = 3 * time.Second

// Service is the booking lifecycle façade: one authorization check, then one
// call into the reservation path or the store.
type Service struct {
	reservations Reservations
	bookings     BookingReader
	gate         *authz.Gate
	events       events.Publisher
	log          *zap.Logger
	now          func() time.Time
}

func NewService(reservations Reservations, bookings BookingReader, gate *authz.Gate, publisher events.Publisher, log *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		reservations: reservations,
		bookings:     bookings,
		gate:         gate,
		events:       publisher,
		log:          log.Named("booking"),
		now:          time.Now,
	}
}

func (s *Service) CreateBooking(ctx context.Context, id *domain.Identity, in CreateBookingInput) (*domain.Booking, error) {
	guestID, err := s.gate.GuestFor(id, in.GuestID)
	if err != nil {
		metrics.IncReservation(outcome(err))
		return nil, err
	}

	b, err := s.reservations.Reserve(ctx, in.ApartmentID, guestID, in.Range, in.TotalPrice)
	metrics.IncReservation(outcome(err))
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewBookingEvent(events.BookingCreated, b, s.now()))
	return b, nil
}

// DeleteBooking reports false when the booking did not exist.
func (s *Service) DeleteBooking(ctx context.Context, id *domain.Identity, bookingID string) (bool, error) {
	if err := s.gate.CanDelete(id); err != nil {
		metrics.IncRelease(outcome(err))
		return false, err
	}

	b, err := s.reservations.ReleaseBooking(ctx, bookingID)
	switch {
	case err != nil:
		metrics.IncRelease(outcome(err))
		return false, err
	case b == nil:
		metrics.IncRelease("absent")
		return false, nil
	}

	metrics.IncRelease("released")
	s.publish(ctx, events.NewBookingEvent(events.BookingDeleted, b, s.now()))
	return true, nil
}

// GetBooking returns the booking to its guest or an admin. Other callers get
// ErrNotFound whether or not the id exists.
func (s *Service) GetBooking(ctx context.Context, id *domain.Identity, bookingID string) (*domain.Booking, error) {
	if id == nil {
		return nil, domain.ErrUnauthenticated
	}
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	// Someone else's booking reads as missing so its id is not disclosed.
	if err := s.gate.CanView(id, b); err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *Service) ListForUser(ctx context.Context, id *domain.Identity, userID int64) ([]domain.Booking, error) {
	if err := s.gate.CanListForUser(id, userID); err != nil {
		return nil, err
	}
	return s.bookings.ListByUser(ctx, userID)
}

func (s *Service) ListAll(ctx context.Context, id *domain.Identity) ([]domain.Booking, error) {
	if err := s.gate.CanListAll(id); err != nil {
		return nil, err
	}
	return s.bookings.ListAll(ctx)
}

func (s *Service) CheckAvailability(ctx context.Context, apartmentID int64, r domain.DateRange) (bool, error) {
	return s.reservations.Available(ctx, apartmentID, r)
}

func (s *Service) BusyDates(ctx context.Context, apartmentID int64) ([]domain.DateRange, error) {
	return s.reservations.BusyRanges(ctx, apartmentID)
}

// publish never fails the caller; the booking is already committed.
func (s *Service) publish(ctx context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn("publish booking event",
			zap.String("type", e.Type),
			zap.String("booking_id", e.BookingID),
			zap.Error(err),
		)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, domain.ErrInvalidRange), errors.Is(err, domain.ErrInvalidPrice):
		return "invalid"
	case errors.Is(err, domain.ErrApartmentUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrDateConflict):
		return "conflict"
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrForbidden):
		return "denied"
	case errors.Is(err, domain.ErrBusy):
		return "busy"
	default:
		return "error"
	}
}
