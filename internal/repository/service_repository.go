package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storefront/service-checkout/internal/domain/catalog"
)

// ServiceModel is the GORM model for the services table.
type ServiceModel struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name                string    `gorm:"type:varchar(255);not null"`
	UnitPriceMinorUnits int64     `gorm:"not null"`
	Active              bool      `gorm:"not null;default:true"`
	UpdatedAt           time.Time `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (ServiceModel) TableName() string { return "services" }

// GormServiceRepository implements catalog.Repository using GORM.
type GormServiceRepository struct {
	db *gorm.DB
}

// NewGormServiceRepository creates a new GormServiceRepository.
func NewGormServiceRepository(db *gorm.DB) *GormServiceRepository {
	return &GormServiceRepository{db: db}
}

// FindByIDs loads every service among ids in one query.
func (r *GormServiceRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []ServiceModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]catalog.Service, len(models))
	for i, m := range models {
		out[i] = catalog.Service{
			ID:                  m.ID,
			Name:                m.Name,
			UnitPriceMinorUnits: m.UnitPriceMinorUnits,
			Active:              m.Active,
			UpdatedAt:           m.UpdatedAt,
		}
	}
	return out, nil
}

// Upsert inserts or replaces a catalog entry.
func (r *GormServiceRepository) Upsert(ctx context.Context, s catalog.Service) error {
	model := ServiceModel{
		ID:                  s.ID,
		Name:                s.Name,
		UnitPriceMinorUnits: s.UnitPriceMinorUnits,
		Active:              s.Active,
		UpdatedAt:           time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "unit_price_minor_units", "active", "updated_at"}),
		}).
		Create(&model).Error
}
