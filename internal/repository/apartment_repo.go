package repository

import (
	"context"
	"errors"
	"time"

	"stayreserve/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApartmentRepository reads the catalog's apartments table. The catalog is
// owned elsewhere; Upsert exists for development seeding only.
type ApartmentRepository struct {
	db *gorm.DB
}

func NewApartmentRepository(db *gorm.DB) *ApartmentRepository {
	return &ApartmentRepository{db: db}
}

type apartmentModel struct {
	ID           int64     `gorm:"column:id;primaryKey"`
	Title        string    `gorm:"column:title"`
	NightlyPrice float64   `gorm:"column:nightly_price"`
	IsAvailable  bool      `gorm:"column:is_available"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (apartmentModel) TableName() string { return "apartments" }

func (r *ApartmentRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&apartmentModel{})
}

func (r *ApartmentRepository) GetByID(ctx context.Context, id int64) (*domain.Apartment, error) {
	var m apartmentModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.Apartment{
		ID:           m.ID,
		Title:        m.Title,
		NightlyPrice: m.NightlyPrice,
		Available:    m.IsAvailable,
	}, nil
}

func (r *ApartmentRepository) Upsert(ctx context.Context, apartments []domain.Apartment) error {
	if len(apartments) == 0 {
		return nil
	}
	rows := make([]apartmentModel, 0, len(apartments))
	for _, a := range apartments {
		rows = append(rows, apartmentModel{
			ID:           a.ID,
			Title:        a.Title,
			NightlyPrice: a.NightlyPrice,
			IsAvailable:  a.Available,
		})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error
}
