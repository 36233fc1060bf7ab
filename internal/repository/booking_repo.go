package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stayreserve/internal/database"
	"stayreserve/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const noOverlapConstraint = "bookings_no_overlap"

// BookingRepository is the durable record of committed bookings.
type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type bookingModel struct {
	ID          string    `gorm:"column:id;primaryKey;size:36"`
	ApartmentID int64     `gorm:"column:apartment_id;not null;index:idx_bookings_apartment_check_in,priority:1"`
	GuestID     int64     `gorm:"column:guest_id;not null;index"`
	CheckIn     time.Time `gorm:"column:check_in;not null;index:idx_bookings_apartment_check_in,priority:2"`
	CheckOut    time.Time `gorm:"column:check_out;not null"`
	TotalPrice  float64   `gorm:"column:total_price;not null"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (bookingModel) TableName() string { return "bookings" }

func toDomainBooking(m bookingModel) *domain.Booking {
	return &domain.Booking{
		ID:          m.ID,
		ApartmentID: m.ApartmentID,
		GuestID:     m.GuestID,
		CheckIn:     m.CheckIn.UTC(),
		CheckOut:    m.CheckOut.UTC(),
		TotalPrice:  m.TotalPrice,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

func toBookingModel(b *domain.Booking) bookingModel {
	return bookingModel{
		ID:          b.ID,
		ApartmentID: b.ApartmentID,
		GuestID:     b.GuestID,
		CheckIn:     b.CheckIn,
		CheckOut:    b.CheckOut,
		TotalPrice:  b.TotalPrice,
		CreatedAt:   b.CreatedAt,
	}
}

// Migrate creates the bookings table. On postgres it also installs an exclusion
// constraint equivalent to the half-open overlap predicate.
func (r *BookingRepository) Migrate(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.AutoMigrate(&bookingModel{}); err != nil {
		return err
	}
	if !database.IsPostgres(r.db) {
		return nil
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS btree_gist`).Error; err != nil {
		return err
	}
	return db.Exec(`
DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '` + noOverlapConstraint + `') THEN
		ALTER TABLE bookings ADD CONSTRAINT ` + noOverlapConstraint + `
			EXCLUDE USING gist (apartment_id WITH =, tstzrange(check_in, check_out, '[)') WITH &&);
	END IF;
END $$;
`).Error
}

// Append commits b. The overlap predicate is re-checked inside the transaction
// so a writer that bypassed the arbiter still cannot double-book.
func (r *BookingRepository) Append(ctx context.Context, b *domain.Booking) error {
	m := toBookingModel(b)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing bookingModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("apartment_id = ?", m.ApartmentID).
			Where("check_in < ? AND check_out > ?", m.CheckOut, m.CheckIn).
			Take(&existing).Error
		if err == nil {
			return domain.ErrDateConflict
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&m).Error
	})
	if err != nil {
		return classify(err)
	}

	*b = *toDomainBooking(m)
	return nil
}

// Remove hard-deletes the booking. It reports false if nothing was deleted.
func (r *BookingRepository) Remove(ctx context.Context, id string) (bool, error) {
	tx := r.db.WithContext(ctx).Where("id = ?", id).Delete(&bookingModel{})
	if tx.Error != nil {
		return false, classify(tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (r *BookingRepository) Get(ctx context.Context, id string) (*domain.Booking, error) {
	var m bookingModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return toDomainBooking(m), nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	return r.list(ctx, r.db.Where("guest_id = ?", userID).Order("created_at DESC").Order("id"))
}

func (r *BookingRepository) ListByApartment(ctx context.Context, apartmentID int64) ([]domain.Booking, error) {
	return r.list(ctx, r.db.Where("apartment_id = ?", apartmentID).Order("check_in ASC"))
}

func (r *BookingRepository) ListAll(ctx context.Context) ([]domain.Booking, error) {
	return r.list(ctx, r.db.Order("created_at DESC").Order("id"))
}

func (r *BookingRepository) list(ctx context.Context, q *gorm.DB) ([]domain.Booking, error) {
	var rows []bookingModel
	if err := q.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, classify(err)
	}

	out := make([]domain.Booking, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainBooking(m))
	}
	return out, nil
}

type OverlapPair struct {
	ApartmentID int64  `gorm:"column:apartment_id"`
	FirstID     string `gorm:"column:first_id"`
	SecondID    string `gorm:"column:second_id"`
}

// FindOverlaps lists every pair of bookings on the same apartment whose ranges overlap.
// A healthy store returns nothing.
func (r *BookingRepository) FindOverlaps(ctx context.Context) ([]OverlapPair, error) {
	var rows []OverlapPair
	q := `
SELECT a.apartment_id, a.id AS first_id, b.id AS second_id
FROM bookings a
JOIN bookings b
  ON a.apartment_id = b.apartment_id
 AND a.id < b.id
 AND a.check_in < b.check_out
 AND b.check_in < a.check_out
ORDER BY a.apartment_id, a.id
`
	if err := r.db.WithContext(ctx).Raw(q).Scan(&rows).Error; err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

// classify maps driver errors onto the domain taxonomy.
func classify(err error) error {
	if errors.Is(err, domain.ErrDateConflict) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23P01",
			pgErr.Code == "23505" && pgErr.ConstraintName == noOverlapConstraint:
			return fmt.Errorf("%w: %s", domain.ErrDateConflict, pgErr.ConstraintName)
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "55P03":
			return fmt.Errorf("%w: %s", domain.ErrBusy, pgErr.Message)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
}
