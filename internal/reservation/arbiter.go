// Package reservation serializes reservations per apartment and keeps the
// availability index and the booking store in agreement.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"stayreserve/internal/availability"
	"stayreserve/internal/domain"
	"stayreserve/internal/lock"
	"stayreserve/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// sharedReloadTimeout bounds a reload shared by several readers.
const sharedReloadTimeout = 5 * time.Second

type Store interface {
	Append(ctx context.Context, b *domain.Booking) error
	Remove(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*domain.Booking, error)
	ListByApartment(ctx context.Context, apartmentID int64) ([]domain.Booking, error)
	ListAll(ctx context.Context) ([]domain.Booking, error)
}

type Catalog interface {
	GetByID(ctx context.Context, id int64) (*domain.Apartment, error)
}

type Options struct {
	// ReloadUnderLock re-reads the apartment's bookings from the store every time
	// its exclusivity is taken. Needed when other processes commit to the same store.
	ReloadUnderLock bool
	NewID           func() string
}

type Arbiter struct {
	store   Store
	catalog Catalog
	index   *availability.Index
	locker  lock.Locker
	log     *zap.Logger

	reloadUnderLock bool
	newID           func() string
	reloads         singleflight.Group
}

func NewArbiter(store Store, catalog Catalog, index *availability.Index, locker lock.Locker, log *zap.Logger, opts Options) *Arbiter {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Arbiter{
		store:           store,
		catalog:         catalog,
		index:           index,
		locker:          locker,
		log:             log.Named("reservation"),
		reloadUnderLock: opts.ReloadUnderLock,
		newID:           opts.NewID,
	}
}

// Warm rebuilds the index for every apartment that has bookings.
func (a *Arbiter) Warm(ctx context.Context) error {
	all, err := a.store.ListAll(ctx)
	if err != nil {
		return storageErr(err)
	}

	byApartment := make(map[int64][]availability.Entry)
	for i := range all {
		b := &all[i]
		byApartment[b.ApartmentID] = append(byApartment[b.ApartmentID], availability.Entry{
			BookingID: b.ID,
			Range:     b.Range(),
		})
	}
	for id, entries := range byApartment {
		a.index.Load(id, entries)
	}

	a.log.Info("availability index warmed",
		zap.Int("bookings", len(all)),
		zap.Int("apartments", len(byApartment)),
	)
	return nil
}

// Reserve commits a booking for r if it overlaps no committed booking of the apartment.
func (a *Arbiter) Reserve(ctx context.Context, apartmentID, guestID int64, r domain.DateRange, totalPrice float64) (*domain.Booking, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if totalPrice < 0 {
		return nil, fmt.Errorf("%w: total_price must not be negative", domain.ErrInvalidPrice)
	}

	apt, err := a.catalog.GetByID(ctx, apartmentID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("%w: apartment %d not found", domain.ErrApartmentUnavailable, apartmentID)
	case err != nil:
		return nil, storageErr(err)
	case !apt.Available:
		return nil, fmt.Errorf("%w: apartment %d is not bookable", domain.ErrApartmentUnavailable, apartmentID)
	}

	release, err := a.acquire(ctx, apartmentID)
	if err != nil {
		return nil, err
	}
	defer release()

	if a.reloadUnderLock || !a.index.Loaded(apartmentID) {
		if err := a.reload(ctx, apartmentID); err != nil {
			return nil, err
		}
	}

	if !a.index.Query(apartmentID, r) {
		return nil, fmt.Errorf("%w: apartment %d %s", domain.ErrDateConflict, apartmentID, r)
	}

	b := &domain.Booking{
		ID:          a.newID(),
		ApartmentID: apartmentID,
		GuestID:     guestID,
		CheckIn:     r.CheckIn,
		CheckOut:    r.CheckOut,
		TotalPrice:  totalPrice,
	}

	a.index.Insert(apartmentID, r, b.ID)
	if err := a.store.Append(ctx, b); err != nil {
		a.index.Remove(apartmentID, b.ID)
		a.index.Invalidate(apartmentID)

		if errors.Is(err, domain.ErrDateConflict) {
			a.log.Warn("store rejected a range the index accepted",
				zap.Int64("apartment_id", apartmentID),
				zap.Stringer("range", r),
			)
			return nil, err
		}
		a.log.Error("append booking failed",
			zap.Int64("apartment_id", apartmentID),
			zap.String("booking_id", b.ID),
			zap.Error(err),
		)
		return nil, storageErr(err)
	}

	a.log.Info("booking committed",
		zap.String("booking_id", b.ID),
		zap.Int64("apartment_id", apartmentID),
		zap.Int64("guest_id", guestID),
		zap.Stringer("range", r),
	)
	return b, nil
}

// Release deletes the booking. It reports false when there was nothing to delete.
func (a *Arbiter) Release(ctx context.Context, bookingID string) (bool, error) {
	b, err := a.ReleaseBooking(ctx, bookingID)
	return b != nil, err
}

// ReleaseBooking deletes the booking and returns it, or nil when there was
// nothing to delete.
func (a *Arbiter) ReleaseBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	b, err := a.store.Get(ctx, bookingID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}

	release, err := a.acquire(ctx, b.ApartmentID)
	if err != nil {
		return nil, err
	}
	defer release()

	removed, err := a.store.Remove(ctx, bookingID)
	if err != nil {
		a.index.Invalidate(b.ApartmentID)
		a.log.Error("remove booking failed",
			zap.String("booking_id", bookingID),
			zap.Error(err),
		)
		return nil, storageErr(err)
	}
	a.index.Remove(b.ApartmentID, bookingID)

	if !removed {
		return nil, nil
	}
	a.log.Info("booking released",
		zap.String("booking_id", bookingID),
		zap.Int64("apartment_id", b.ApartmentID),
	)
	return b, nil
}

// Available reports whether r is free on the apartment. It does not take the
// apartment's exclusivity once the apartment's ranges are loaded, unless the
// arbiter reloads under the lock.
func (a *Arbiter) Available(ctx context.Context, apartmentID int64, r domain.DateRange) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	if err := a.ensureLoaded(ctx, apartmentID); err != nil {
		return false, err
	}
	return a.index.Query(apartmentID, r), nil
}

// BusyRanges returns the apartment's committed ranges ordered by check-in.
func (a *Arbiter) BusyRanges(ctx context.Context, apartmentID int64) ([]domain.DateRange, error) {
	if err := a.ensureLoaded(ctx, apartmentID); err != nil {
		return nil, err
	}
	entries := a.index.Ranges(apartmentID)
	out := make([]domain.DateRange, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Range)
	}
	return out, nil
}

func (a *Arbiter) acquire(ctx context.Context, apartmentID int64) (lock.Release, error) {
	start := time.Now()
	release, err := a.locker.Acquire(ctx, lock.ApartmentKey(apartmentID))
	metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		a.log.Warn("apartment busy",
			zap.Int64("apartment_id", apartmentID),
			zap.Error(err),
		)
		if !errors.Is(err, domain.ErrBusy) {
			err = fmt.Errorf("%w: %w", domain.ErrBusy, err)
		}
		return nil, err
	}
	return func() error {
		if err := release(); err != nil {
			a.log.Warn("release apartment lock", zap.Int64("apartment_id", apartmentID), zap.Error(err))
			return err
		}
		return nil
	}, nil
}

// ensureLoaded loads the apartment's ranges under its exclusivity, so a reload
// never races a commit made through this arbiter. With reloadUnderLock every read
// reloads, since other processes commit to the same store. Concurrent callers share
// one reload, which runs detached from any single caller's cancellation.
func (a *Arbiter) ensureLoaded(ctx context.Context, apartmentID int64) error {
	if !a.reloadUnderLock && a.index.Loaded(apartmentID) {
		return nil
	}
	_, err, _ := a.reloads.Do(strconv.FormatInt(apartmentID, 10), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReloadTimeout)
		defer cancel()

		release, err := a.acquire(ctx, apartmentID)
		if err != nil {
			return nil, err
		}
		defer release()

		if !a.reloadUnderLock && a.index.Loaded(apartmentID) {
			return nil, nil
		}
		return nil, a.reload(ctx, apartmentID)
	})
	return err
}

// reload replaces the apartment's index entries with the store's view.
// The caller holds the apartment's exclusivity.
func (a *Arbiter) reload(ctx context.Context, apartmentID int64) error {
	bookings, err := a.store.ListByApartment(ctx, apartmentID)
	if err != nil {
		a.index.Invalidate(apartmentID)
		return storageErr(err)
	}

	entries := make([]availability.Entry, 0, len(bookings))
	for i := range bookings {
		entries = append(entries, availability.Entry{BookingID: bookings[i].ID, Range: bookings[i].Range()})
	}
	a.index.Load(apartmentID, entries)
	metrics.IncIndexReload()
	return nil
}

func storageErr(err error) error {
	if errors.Is(err, domain.ErrStorageFailure) || errors.Is(err, domain.ErrBusy) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
}
