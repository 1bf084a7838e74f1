package discount

import (
	"context"
	"fmt"
	"time"

	"github.com/storefront/service-checkout/internal/domain/coupon"
	"github.com/storefront/service-checkout/internal/domain/pricing"
	"github.com/storefront/service-checkout/internal/domain/referral"
	"github.com/storefront/service-checkout/pkg/domain"
)

// Resolver looks a code up as a coupon first and as a referral code second.
// It has no side effects: coupon uses are reserved when the order is created.
type Resolver struct {
	coupons   coupon.Repository
	referrals referral.Repository
	now       func() time.Time
}

// NewResolver creates a Resolver using the wall clock.
func NewResolver(coupons coupon.Repository, referrals referral.Repository) *Resolver {
	return &Resolver{
		coupons:   coupons,
		referrals: referrals,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of the resolver that reads time from now.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	cp := *r
	cp.now = now
	return &cp
}

// Resolve validates code against snap. An empty code resolves to None.
func (r *Resolver) Resolve(ctx context.Context, code string, snap pricing.Snapshot) (Result, error) {
	normalized := coupon.NormalizeCode(code)
	if normalized == "" {
		return None(), nil
	}

	c, err := r.coupons.FindByCode(ctx, normalized)
	if err != nil && !domain.IsNotFound(err) {
		return Result{}, fmt.Errorf("find coupon: %w", err)
	}
	if c != nil && c.Active() {
		return r.applyCoupon(c, snap)
	}

	ref, err := r.referrals.FindByCode(ctx, normalized)
	if err != nil && !domain.IsNotFound(err) {
		return Result{}, fmt.Errorf("find referral code: %w", err)
	}
	if ref != nil && ref.Active() {
		id := ref.ID()
		return Result{
			Kind:             KindReferral,
			AmountMinorUnits: 0,
			SourceID:         &id,
			Code:             ref.Code(),
		}, nil
	}

	return Result{}, NewCodeNotFound(normalized)
}

func (r *Resolver) applyCoupon(c *coupon.Coupon, snap pricing.Snapshot) (Result, error) {
	switch c.Check(r.now(), snap.SubtotalMinorUnits) {
	case coupon.ViolationExpired:
		return Result{}, NewCodeExpired(c.Code(), *c.ExpiresAt())
	case coupon.ViolationExhausted:
		return Result{}, NewCodeExhausted(c.Code(), c.MaxUses())
	case coupon.ViolationMinimumNotMet:
		return Result{}, NewMinimumOrderNotMet(c.Code(), *c.MinOrderAmountMinorUnits(), snap.SubtotalMinorUnits)
	case coupon.ViolationInactive:
		return Result{}, NewCodeNotFound(c.Code())
	}

	id := c.ID()
	return Result{
		Kind:             KindCoupon,
		AmountMinorUnits: c.CalculateDiscount(snap.SubtotalMinorUnits),
		SourceID:         &id,
		Code:             c.Code(),
	}, nil
}
