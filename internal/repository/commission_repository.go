package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storefront/service-checkout/internal/domain/commission"
	"github.com/storefront/service-checkout/pkg/domain"
)

// CommissionModel is the GORM model for the commissions table.
type CommissionModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID          uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	PromoterID       string          `gorm:"type:varchar(128);not null;index"`
	ReferralCodeID   uuid.UUID       `gorm:"type:uuid;not null"`
	RateApplied      decimal.Decimal `gorm:"type:numeric(7,6);not null"`
	AmountMinorUnits int64           `gorm:"not null"`
	CreatedAt        time.Time       `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (CommissionModel) TableName() string { return "commissions" }

// GormCommissionRepository implements commission.Repository using GORM.
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewGormCommissionRepository creates a new GormCommissionRepository.
func NewGormCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// CreateIfAbsent relies on the unique order_id index: a losing concurrent
// insert affects no rows and reads back the winner.
func (r *GormCommissionRepository) CreateIfAbsent(ctx context.Context, c *commission.Commission) (*commission.Commission, bool, error) {
	model := toCommissionModel(c)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return c, true, nil
	}

	existing, err := r.FindByOrderID(ctx, c.OrderID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// FindByOrderID returns the commission recorded for an order.
func (r *GormCommissionRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*commission.Commission, error) {
	var model CommissionModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Commission", orderID.String())
		}
		return nil, err
	}
	return toCommissionDomain(&model), nil
}

// ListByPromoter returns a promoter's commissions newest first.
func (r *GormCommissionRepository) ListByPromoter(ctx context.Context, promoterID string, page, limit int) ([]*commission.Commission, int64, error) {
	query := r.db.WithContext(ctx).Model(&CommissionModel{}).Where("promoter_id = ?", promoterID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []CommissionModel
	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*commission.Commission, len(models))
	for i := range models {
		out[i] = toCommissionDomain(&models[i])
	}
	return out, total, nil
}

// TotalByPromoter sums every commission earned by a promoter.
func (r *GormCommissionRepository) TotalByPromoter(ctx context.Context, promoterID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&CommissionModel{}).
		Where("promoter_id = ?", promoterID).
		Select("COALESCE(SUM(amount_minor_units), 0)").
		Scan(&total).Error
	return total, err
}

func toCommissionModel(c *commission.Commission) CommissionModel {
	return CommissionModel{
		ID:               c.ID,
		OrderID:          c.OrderID,
		PromoterID:       c.PromoterID,
		ReferralCodeID:   c.ReferralCodeID,
		RateApplied:      c.RateApplied,
		AmountMinorUnits: c.AmountMinorUnits,
		CreatedAt:        c.CreatedAt,
	}
}

func toCommissionDomain(m *CommissionModel) *commission.Commission {
	return &commission.Commission{
		ID:               m.ID,
		OrderID:          m.OrderID,
		PromoterID:       m.PromoterID,
		ReferralCodeID:   m.ReferralCodeID,
		RateApplied:      m.RateApplied,
		AmountMinorUnits: m.AmountMinorUnits,
		CreatedAt:        m.CreatedAt,
	}
}
