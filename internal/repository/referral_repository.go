package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	referralDomain "github.com/storefront/service-checkout/internal/domain/referral"
	"github.com/storefront/service-checkout/pkg/domain"
)

// ReferralCodeModel is the GORM model for the referral_codes table.
type ReferralCodeModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Code            string          `gorm:"type:varchar(64);uniqueIndex;not null"`
	OwnerPromoterID string          `gorm:"type:varchar(128);not null;index"`
	CommissionRate  decimal.Decimal `gorm:"type:numeric(7,6);not null"`
	Active          bool            `gorm:"not null;default:true"`
	CreatedAt       time.Time       `gorm:"type:timestamptz;not null"`
	UpdatedAt       time.Time       `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (ReferralCodeModel) TableName() string { return "referral_codes" }

// GormReferralRepository implements referral.Repository using GORM.
type GormReferralRepository struct {
	db *gorm.DB
}

// NewGormReferralRepository creates a new GormReferralRepository.
func NewGormReferralRepository(db *gorm.DB) *GormReferralRepository {
	return &GormReferralRepository{db: db}
}

// Save inserts or updates a referral code.
func (r *GormReferralRepository) Save(ctx context.Context, rc *referralDomain.ReferralCode) error {
	model := ReferralCodeModel{
		ID:              rc.ID(),
		Code:            rc.Code(),
		OwnerPromoterID: rc.OwnerPromoterID(),
		CommissionRate:  rc.CommissionRate(),
		Active:          rc.Active(),
		CreatedAt:       rc.CreatedAt(),
		UpdatedAt:       rc.UpdatedAt(),
	}
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("referral code already exists")
		}
		return err
	}
	return nil
}

// FindByCode returns a referral code by its code string.
func (r *GormReferralRepository) FindByCode(ctx context.Context, code string) (*referralDomain.ReferralCode, error) {
	var model ReferralCodeModel
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if err := r.db.WithContext(ctx).Where("code = ?", normalized).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("ReferralCode", code)
		}
		return nil, err
	}
	return toReferralDomain(&model), nil
}

// FindByID returns a referral code by ID.
func (r *GormReferralRepository) FindByID(ctx context.Context, id uuid.UUID) (*referralDomain.ReferralCode, error) {
	var model ReferralCodeModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("ReferralCode", id.String())
		}
		return nil, err
	}
	return toReferralDomain(&model), nil
}

func toReferralDomain(m *ReferralCodeModel) *referralDomain.ReferralCode {
	return referralDomain.Reconstruct(m.ID, m.Code, m.OwnerPromoterID, m.CommissionRate, m.Active, m.CreatedAt, m.UpdatedAt)
}
