// Package events fans booking lifecycle events out to subscribers.
package events

import (
	"context"
	"errors"
	"time"

	"stayreserve/internal/domain"
)

const (
	BookingCreated = "booking.created"
	BookingDeleted = "booking.deleted"
)

type Event struct {
	Type        string    `json:"type"`
	BookingID   string    `json:"booking_id"`
	ApartmentID int64     `json:"apartment_id"`
	GuestID     int64     `json:"guest_id"`
	CheckIn     string    `json:"check_in"`
	CheckOut    string    `json:"check_out"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func NewBookingEvent(kind string, b *domain.Booking, at time.Time) Event {
	return Event{
		Type:        kind,
		BookingID:   b.ID,
		ApartmentID: b.ApartmentID,
		GuestID:     b.GuestID,
		CheckIn:     b.CheckIn.Format(domain.DateLayout),
		CheckOut:    b.CheckOut.Format(domain.DateLayout),
		OccurredAt:  at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
