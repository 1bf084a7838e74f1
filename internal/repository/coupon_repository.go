package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	couponDomain "github.com/storefront/service-checkout/internal/domain/coupon"
	"github.com/storefront/service-checkout/pkg/domain"
)

// CouponModel is the GORM model for the coupons table.
type CouponModel struct {
	ID                       uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Code                     string     `gorm:"type:varchar(64);uniqueIndex;not null"`
	Kind                     string     `gorm:"type:varchar(16);not null"`
	Value                    int64      `gorm:"not null"`
	MinOrderAmountMinorUnits *int64     `gorm:""`
	MaxUses                  *int       `gorm:""`
	CurrentUses              int        `gorm:"not null;default:0"`
	ExpiresAt                *time.Time `gorm:"type:timestamptz"`
	Active                   bool       `gorm:"not null;default:true"`
	CreatedAt                time.Time  `gorm:"type:timestamptz;not null"`
	UpdatedAt                time.Time  `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (CouponModel) TableName() string { return "coupons" }

// CouponReservationModel records the coupon use held by one order. A use is
// given back at most once: ReleasedAt is set in the same transaction that
// decrements current_uses.
type CouponReservationModel struct {
	OrderID    uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CouponID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	ReservedAt time.Time  `gorm:"type:timestamptz;not null"`
	ReleasedAt *time.Time `gorm:"type:timestamptz"`
}

// TableName sets the table name.
func (CouponReservationModel) TableName() string { return "coupon_reservations" }

// GormCouponRepository implements coupon.Repository using GORM.
type GormCouponRepository struct {
	db *gorm.DB
}

// NewGormCouponRepository creates a new GormCouponRepository.
func NewGormCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

// Save inserts a new coupon or overwrites the terms of an existing one.
// current_uses is left to the reservation statements.
func (r *GormCouponRepository) Save(ctx context.Context, c *couponDomain.Coupon) error {
	model := toCouponModel(c)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"code", "kind", "value", "min_order_amount_minor_units",
				"max_uses", "expires_at", "active", "updated_at",
			}),
		}).
		Omit("current_uses").
		Create(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("coupon code already exists")
		}
		return err
	}
	return nil
}

// FindByCode returns a coupon by its normalized code.
func (r *GormCouponRepository) FindByCode(ctx context.Context, code string) (*couponDomain.Coupon, error) {
	var model CouponModel
	if err := r.db.WithContext(ctx).Where("code = ?", couponDomain.NormalizeCode(code)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Coupon", code)
		}
		return nil, err
	}
	return toCouponDomain(&model), nil
}

// FindByID returns a coupon by ID.
func (r *GormCouponRepository) FindByID(ctx context.Context, id uuid.UUID) (*couponDomain.Coupon, error) {
	var model CouponModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Coupon", id.String())
		}
		return nil, err
	}
	return toCouponDomain(&model), nil
}

// List returns coupons, newest first (admin).
func (r *GormCouponRepository) List(ctx context.Context, page, limit int) ([]*couponDomain.Coupon, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&CouponModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []CouponModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	coupons := make([]*couponDomain.Coupon, len(models))
	for i := range models {
		coupons[i] = toCouponDomain(&models[i])
	}
	return coupons, total, nil
}

// ReserveUse records the reservation and increments current_uses in one
// transaction. The increment is a single conditional statement so concurrent
// checkouts can never push it past max_uses.
func (r *GormCouponRepository) ReserveUse(ctx context.Context, couponID, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		hold := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
			Create(&CouponReservationModel{OrderID: orderID, CouponID: couponID, ReservedAt: now})
		if hold.Error != nil {
			if errors.Is(hold.Error, gorm.ErrForeignKeyViolated) {
				return domain.NewNotFoundError("Coupon", couponID.String())
			}
			return hold.Error
		}
		if hold.RowsAffected == 0 {
			return nil
		}

		result := tx.Model(&CouponModel{}).
			Where("id = ? AND active AND (max_uses IS NULL OR current_uses < max_uses)", couponID).
			Updates(map[string]any{
				"current_uses": gorm.Expr("current_uses + 1"),
				"updated_at":   now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&CouponModel{}).Where("id = ?", couponID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.NewNotFoundError("Coupon", couponID.String())
			}
			return couponDomain.ErrNoUsesLeft
		}
		return nil
	})
}

// ReleaseUse marks the order's reservation released and decrements
// current_uses in one transaction. Releasing twice, or releasing an order
// that holds nothing, changes nothing.
func (r *GormCouponRepository) ReleaseUse(ctx context.Context, couponID, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		result := tx.Model(&CouponReservationModel{}).
			Where("order_id = ? AND coupon_id = ? AND released_at IS NULL", orderID, couponID).
			Update("released_at", now)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		return tx.Model(&CouponModel{}).
			Where("id = ? AND current_uses > 0", couponID).
			Updates(map[string]any{
				"current_uses": gorm.Expr("current_uses - 1"),
				"updated_at":   now,
			}).Error
	})
}

func toCouponModel(c *couponDomain.Coupon) CouponModel {
	return CouponModel{
		ID:                       c.ID(),
		Code:                     c.Code(),
		Kind:                     string(c.Kind()),
		Value:                    c.Value(),
		MinOrderAmountMinorUnits: c.MinOrderAmountMinorUnits(),
		MaxUses:                  c.MaxUses(),
		CurrentUses:              c.CurrentUses(),
		ExpiresAt:                c.ExpiresAt(),
		Active:                   c.Active(),
		CreatedAt:                c.CreatedAt(),
		UpdatedAt:                c.UpdatedAt(),
	}
}

func toCouponDomain(m *CouponModel) *couponDomain.Coupon {
	return couponDomain.Reconstruct(
		m.ID, m.Code, couponDomain.Kind(m.Kind), m.Value,
		m.MinOrderAmountMinorUnits, m.MaxUses, m.CurrentUses,
		m.ExpiresAt, m.Active, m.CreatedAt, m.UpdatedAt,
	)
}
