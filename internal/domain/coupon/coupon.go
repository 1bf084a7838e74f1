// Package coupon models admin-issued discount codes and their use counting.
package coupon

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind determines how Value is interpreted.
type Kind string

const (
	KindPercentage Kind = "PERCENTAGE"
	KindFixed      Kind = "FIXED"
)

// Violation is the reason a coupon cannot be applied to a subtotal.
type Violation string

const (
	ViolationNone          Violation = ""
	ViolationInactive      Violation = "INACTIVE"
	ViolationExpired       Violation = "EXPIRED"
	ViolationExhausted     Violation = "EXHAUSTED"
	ViolationMinimumNotMet Violation = "MINIMUM_NOT_MET"
)

// ErrNoUsesLeft is returned by Repository.ReserveUse when the conditional
// increment matched no row.
var ErrNoUsesLeft = errors.New("coupon has no uses left")

var hundred = decimal.NewFromInt(100)

// Coupon is the aggregate root for admin-issued discount codes.
type Coupon struct {
	id                       uuid.UUID
	code                     string
	kind                     Kind
	value                    int64 // percentage (0-100) or fixed amount in minor units
	minOrderAmountMinorUnits *int64
	maxUses                  *int
	currentUses              int
	expiresAt                *time.Time
	active                   bool
	createdAt                time.Time
	updatedAt                time.Time
}

// NewCouponParams groups the admin supplied terms of a new coupon.
type NewCouponParams struct {
	Code                     string
	Kind                     Kind
	Value                    int64
	MinOrderAmountMinorUnits *int64
	MaxUses                  *int
	ExpiresAt                *time.Time
}

// NewCoupon validates terms and creates an active coupon with no uses.
func NewCoupon(p NewCouponParams) (*Coupon, error) {
	code := NormalizeCode(p.Code)
	if code == "" {
		return nil, fmt.Errorf("coupon code is required")
	}
	switch p.Kind {
	case KindPercentage:
		if p.Value < 0 || p.Value > 100 {
			return nil, fmt.Errorf("percentage value must be between 0 and 100")
		}
	case KindFixed:
		if p.Value < 0 {
			return nil, fmt.Errorf("fixed value cannot be negative")
		}
	default:
		return nil, fmt.Errorf("invalid coupon kind: %s", p.Kind)
	}
	if p.MaxUses != nil && *p.MaxUses < 0 {
		return nil, fmt.Errorf("max uses cannot be negative")
	}
	if p.MinOrderAmountMinorUnits != nil && *p.MinOrderAmountMinorUnits < 0 {
		return nil, fmt.Errorf("minimum order amount cannot be negative")
	}

	now := time.Now().UTC()
	return &Coupon{
		id:                       uuid.New(),
		code:                     code,
		kind:                     p.Kind,
		value:                    p.Value,
		minOrderAmountMinorUnits: p.MinOrderAmountMinorUnits,
		maxUses:                  p.MaxUses,
		expiresAt:                p.ExpiresAt,
		active:                   true,
		createdAt:                now,
		updatedAt:                now,
	}, nil
}

// Reconstruct rebuilds a Coupon from persistence.
func Reconstruct(
	id uuid.UUID, code string, kind Kind, value int64,
	minOrderAmountMinorUnits *int64, maxUses *int, currentUses int,
	expiresAt *time.Time, active bool, createdAt, updatedAt time.Time,
) *Coupon {
	return &Coupon{
		id: id, code: code, kind: kind, value: value,
		minOrderAmountMinorUnits: minOrderAmountMinorUnits,
		maxUses:                  maxUses, currentUses: currentUses,
		expiresAt: expiresAt, active: active,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// NormalizeCode is the canonical form under which codes are stored and compared.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check reports the first rule that prevents applying the coupon to subtotal at now.
func (c *Coupon) Check(now time.Time, subtotalMinorUnits int64) Violation {
	switch {
	case !c.active:
		return ViolationInactive
	case c.IsExpired(now):
		return ViolationExpired
	case c.IsExhausted():
		return ViolationExhausted
	case c.minOrderAmountMinorUnits != nil && subtotalMinorUnits < *c.minOrderAmountMinorUnits:
		return ViolationMinimumNotMet
	}
	return ViolationNone
}

// IsExpired reports whether the coupon expired at or before now.
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.expiresAt != nil && !now.Before(*c.expiresAt)
}

// IsExhausted reports whether every use is taken.
func (c *Coupon) IsExhausted() bool {
	return c.maxUses != nil && c.currentUses >= *c.maxUses
}

// CalculateDiscount returns the discount for subtotal. It never exceeds the
// subtotal and never goes below zero.
func (c *Coupon) CalculateDiscount(subtotalMinorUnits int64) int64 {
	if subtotalMinorUnits <= 0 {
		return 0
	}

	var discount int64
	switch c.kind {
	case KindPercentage:
		discount = decimal.NewFromInt(subtotalMinorUnits).
			Mul(decimal.NewFromInt(c.value)).
			Div(hundred).
			Round(0).
			IntPart()
	case KindFixed:
		discount = c.value
	}

	if discount > subtotalMinorUnits {
		discount = subtotalMinorUnits
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// Deactivate stops the coupon from resolving.
func (c *Coupon) Deactivate() {
	c.active = false
	c.updatedAt = time.Now().UTC()
}

// RemainingUses returns nil for unlimited coupons.
func (c *Coupon) RemainingUses() *int {
	if c.maxUses == nil {
		return nil
	}
	left := *c.maxUses - c.currentUses
	if left < 0 {
		left = 0
	}
	return &left
}

// Getters.
func (c *Coupon) ID() uuid.UUID                    { return c.id }
func (c *Coupon) Code() string                     { return c.code }
func (c *Coupon) Kind() Kind                       { return c.kind }
func (c *Coupon) Value() int64                     { return c.value }
func (c *Coupon) MinOrderAmountMinorUnits() *int64 { return c.minOrderAmountMinorUnits }
func (c *Coupon) MaxUses() *int                    { return c.maxUses }
func (c *Coupon) CurrentUses() int                 { return c.currentUses }
func (c *Coupon) ExpiresAt() *time.Time            { return c.expiresAt }
func (c *Coupon) Active() bool                     { return c.active }
func (c *Coupon) CreatedAt() time.Time             { return c.createdAt }
func (c *Coupon) UpdatedAt() time.Time             { return c.updatedAt }
