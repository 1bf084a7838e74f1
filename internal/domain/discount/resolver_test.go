package discount_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/service-checkout/internal/domain/coupon"
	"github.com/storefront/service-checkout/internal/domain/discount"
	"github.com/storefront/service-checkout/internal/domain/pricing"
	"github.com/storefront/service-checkout/internal/domain/referral"
	"github.com/storefront/service-checkout/internal/repository/memory"
	"github.com/storefront/service-checkout/pkg/domain"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	coupons   *memory.CouponRepository
	referrals *memory.ReferralRepository
	resolver  *discount.Resolver
}

func newFixture() *fixture {
	f := &fixture{coupons: memory.NewCouponRepository(), referrals: memory.NewReferralRepository()}
	f.resolver = discount.NewResolver(f.coupons, f.referrals).WithClock(func() time.Time { return now })
	return f
}

func (f *fixture) coupon(t *testing.T, p coupon.NewCouponParams) *coupon.Coupon {
	t.Helper()
	c, err := coupon.NewCoupon(p)
	require.NoError(t, err)
	require.NoError(t, f.coupons.Save(context.Background(), c))
	return c
}

func (f *fixture) referral(t *testing.T, code string) *referral.ReferralCode {
	t.Helper()
	rc, err := referral.NewReferralCode(code, "promoter-1", decimal.RequireFromString("0.1"))
	require.NoError(t, err)
	require.NoError(t, f.referrals.Save(context.Background(), rc))
	return rc
}

func snap(subtotal int64) pricing.Snapshot {
	return pricing.Snapshot{
		LineItems:          []pricing.LineItem{{ServiceID: uuid.New(), Quantity: 1, UnitPriceMinorUnits: subtotal, LineTotalMinorUnits: subtotal}},
		SubtotalMinorUnits: subtotal,
	}
}

func reason(t *testing.T, err error) discount.Reason {
	t.Helper()
	var de *discount.Error
	require.True(t, errors.As(err, &de), "expected discount error, got %v", err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	return de.Reason
}

func TestResolve_EmptyCodeIsNone(t *testing.T) {
	f := newFixture()
	d, err := f.resolver.Resolve(context.Background(), "   ", snap(100))
	require.NoError(t, err)
	assert.Equal(t, discount.KindNone, d.Kind)
	assert.Zero(t, d.AmountMinorUnits)
	assert.Nil(t, d.SourceID)
}

func TestResolve_Coupon(t *testing.T) {
	f := newFixture()
	c := f.coupon(t, coupon.NewCouponParams{Code: "SAVE20", Kind: coupon.KindPercentage, Value: 20})

	d, err := f.resolver.Resolve(context.Background(), "save20", snap(5000))
	require.NoError(t, err)
	assert.Equal(t, discount.KindCoupon, d.Kind)
	assert.Equal(t, int64(1000), d.AmountMinorUnits)
	require.NotNil(t, d.SourceID)
	assert.Equal(t, c.ID(), *d.SourceID)
	assert.Equal(t, "SAVE20", d.Code)
}

func TestResolve_ReferralHasZeroAmount(t *testing.T) {
	f := newFixture()
	rc := f.referral(t, "FRIEND")

	d, err := f.resolver.Resolve(context.Background(), "friend", snap(5000))
	require.NoError(t, err)
	assert.Equal(t, discount.KindReferral, d.Kind)
	assert.Zero(t, d.AmountMinorUnits)
	assert.Equal(t, rc.ID(), *d.SourceID)
}

func TestResolve_CouponTakesPrecedenceOverReferral(t *testing.T) {
	f := newFixture()
	f.referral(t, "BOTH")
	c := f.coupon(t, coupon.NewCouponParams{Code: "BOTH", Kind: coupon.KindFixed, Value: 300})

	d, err := f.resolver.Resolve(context.Background(), "BOTH", snap(5000))
	require.NoError(t, err)
	assert.Equal(t, discount.KindCoupon, d.Kind)
	assert.Equal(t, c.ID(), *d.SourceID)
}

func TestResolve_Failures(t *testing.T) {
	f := newFixture()
	past := now.Add(-time.Minute)
	maxUses := 1
	minimum := int64(10000)

	f.coupon(t, coupon.NewCouponParams{Code: "OLD", Kind: coupon.KindFixed, Value: 100, ExpiresAt: &past})
	f.coupon(t, coupon.NewCouponParams{Code: "BIGSPEND", Kind: coupon.KindFixed, Value: 100, MinOrderAmountMinorUnits: &minimum})
	used := f.coupon(t, coupon.NewCouponParams{Code: "ONCE", Kind: coupon.KindFixed, Value: 100, MaxUses: &maxUses})
	require.NoError(t, f.coupons.ReserveUse(context.Background(), used.ID(), uuid.New()))

	_, err := f.resolver.Resolve(context.Background(), "NOPE", snap(5000))
	assert.Equal(t, discount.ReasonCodeNotFound, reason(t, err))

	_, err = f.resolver.Resolve(context.Background(), "OLD", snap(5000))
	assert.Equal(t, discount.ReasonCodeExpired, reason(t, err))

	_, err = f.resolver.Resolve(context.Background(), "BIGSPEND", snap(5000))
	assert.Equal(t, discount.ReasonMinimumOrderNotMet, reason(t, err))

	_, err = f.resolver.Resolve(context.Background(), "ONCE", snap(5000))
	assert.Equal(t, discount.ReasonCodeExhausted, reason(t, err))
}

func TestResolve_InactiveCouponIsNotFound(t *testing.T) {
	f := newFixture()
	c := f.coupon(t, coupon.NewCouponParams{Code: "GONE", Kind: coupon.KindFixed, Value: 100})
	c.Deactivate()
	require.NoError(t, f.coupons.Save(context.Background(), c))

	_, err := f.resolver.Resolve(context.Background(), "GONE", snap(5000))
	assert.Equal(t, discount.ReasonCodeNotFound, reason(t, err))
}

func TestResolve_HasNoSideEffects(t *testing.T) {
	f := newFixture()
	c := f.coupon(t, coupon.NewCouponParams{Code: "FREE", Kind: coupon.KindFixed, Value: 100})

	for i := 0; i < 3; i++ {
		_, err := f.resolver.Resolve(context.Background(), "FREE", snap(5000))
		require.NoError(t, err)
	}
	stored, err := f.coupons.FindByID(context.Background(), c.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, stored.CurrentUses())
}
