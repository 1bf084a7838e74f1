// Package referral models promoter-issued codes that attribute commission.
package referral

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReferralCode attributes an order to a promoter. It never changes the price.
type ReferralCode struct {
	id              uuid.UUID
	code            string
	ownerPromoterID string
	commissionRate  decimal.Decimal
	active          bool
	createdAt       time.Time
	updatedAt       time.Time
}

// NewReferralCode validates and creates an active referral code.
// commissionRate must satisfy 0 < rate <= 1.
func NewReferralCode(code, ownerPromoterID string, commissionRate decimal.Decimal) (*ReferralCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("referral code is required")
	}
	if strings.TrimSpace(ownerPromoterID) == "" {
		return nil, fmt.Errorf("promoter id is required")
	}
	if !commissionRate.IsPositive() || commissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("commission rate must be in (0, 1]")
	}

	now := time.Now().UTC()
	return &ReferralCode{
		id:              uuid.New(),
		code:            code,
		ownerPromoterID: ownerPromoterID,
		commissionRate:  commissionRate,
		active:          true,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// Reconstruct rebuilds a ReferralCode from persistence.
func Reconstruct(id uuid.UUID, code, ownerPromoterID string, commissionRate decimal.Decimal, active bool, createdAt, updatedAt time.Time) *ReferralCode {
	return &ReferralCode{
		id: id, code: code, ownerPromoterID: ownerPromoterID,
		commissionRate: commissionRate, active: active,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// CommissionFor returns round(totalMinorUnits * rate), half away from zero.
func (r *ReferralCode) CommissionFor(totalMinorUnits int64) int64 {
	return decimal.NewFromInt(totalMinorUnits).Mul(r.commissionRate).Round(0).IntPart()
}

func (r *ReferralCode) ID() uuid.UUID                   { return r.id }
func (r *ReferralCode) Code() string                    { return r.code }
func (r *ReferralCode) OwnerPromoterID() string         { return r.ownerPromoterID }
func (r *ReferralCode) CommissionRate() decimal.Decimal { return r.commissionRate }
func (r *ReferralCode) Active() bool                    { return r.active }
func (r *ReferralCode) CreatedAt() time.Time            { return r.createdAt }
func (r *ReferralCode) UpdatedAt() time.Time            { return r.updatedAt }

// Repository defines persistence operations for referral codes.
type Repository interface {
	Save(ctx context.Context, r *ReferralCode) error
	FindByCode(ctx context.Context, code string) (*ReferralCode, error)
	FindByID(ctx context.Context, id uuid.UUID) (*ReferralCode, error)
}
