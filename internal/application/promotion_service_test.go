package application_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/service-checkout/internal/application"
	"github.com/storefront/service-checkout/internal/domain/coupon"
	"github.com/storefront/service-checkout/internal/domain/discount"
	"github.com/storefront/service-checkout/pkg/domain"
)

func TestPromotions_CreateCoupon(t *testing.T) {
	h := newHarness(t, application.CheckoutOptions{})
	maxUses := 10

	dto, err := h.promotions.CreateCoupon(context.Background(), application.CreateCouponRequest{
		Code: "spring", Kind: "PERCENTAGE", Value: 15, MaxUses: &maxUses,
	})
	require.NoError(t, err)
	assert.Equal(t, "SPRING", dto.Code)
	require.NotNil(t, dto.RemainingUses)
	assert.Equal(t, 10, *dto.RemainingUses)

	_, err = h.promotions.CreateCoupon(context.Background(), application.CreateCouponRequest{Code: "SPRING", Kind: "FIXED", Value: 1})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = h.promotions.CreateCoupon(context.Background(), application.CreateCouponRequest{Code: "BAD", Kind: "PERCENTAGE", Value: 150})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPromotions_CodesAreUniqueAcrossCouponsAndReferrals(t *testing.T) {
	h := newHarness(t, application.CheckoutOptions{})
	h.referral(t, "FRIEND", "promoter-1", "0.05")
	h.coupon(t, coupon.NewCouponParams{Code: "SALE", Kind: coupon.KindFixed, Value: 100})

	_, err := h.promotions.CreateCoupon(context.Background(), application.CreateCouponRequest{Code: "friend", Kind: "FIXED", Value: 1})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = h.promotions.CreateReferral(context.Background(), application.CreateReferralRequest{Code: "sale", OwnerPromoterID: "p", CommissionRate: "0.1"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestPromotions_CreateReferralValidatesRate(t *testing.T) {
	h := newHarness(t, application.CheckoutOptions{})

	_, err := h.promotions.CreateReferral(context.Background(), application.CreateReferralRequest{Code: "A", OwnerPromoterID: "p", CommissionRate: "ten percent"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = h.promotions.CreateReferral(context.Background(), application.CreateReferralRequest{Code: "A", OwnerPromoterID: "p", CommissionRate: "0"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	dto, err := h.promotions.CreateReferral(context.Background(), application.CreateReferralRequest{Code: "a", OwnerPromoterID: "p", CommissionRate: "0.125"})
	require.NoError(t, err)
	assert.Equal(t, "A", dto.Code)
	assert.Equal(t, "0.125", dto.CommissionRate)
}

func TestPromotions_PreviewCoupon(t *testing.T) {
	h := newHarness(t, application.CheckoutOptions{})
	c := h.coupon(t, coupon.NewCouponParams{Code: "SALE", Kind: coupon.KindFixed, Value: 100})

	dto, err := h.promotions.PreviewCoupon(context.Background(), "sale")
	require.NoError(t, err)
	assert.Equal(t, c.ID(), dto.ID)
	assert.False(t, dto.Expired)

	c.Deactivate()
	require.NoError(t, h.coupons.Save(context.Background(), c))
	_, err = h.promotions.PreviewCoupon(context.Background(), "sale")
	var de *discount.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, discount.ReasonCodeNotFound, de.Reason)
}

func TestPromotions_DeactivateCouponKeepsReservedUses(t *testing.T) {
	h := newHarness(t, application.CheckoutOptions{})
	c := h.coupon(t, coupon.NewCouponParams{Code: "SALE", Kind: coupon.KindFixed, Value: 100})
	o := h.placeOrder(t, "buyer-1", 1000, "SALE")

	dto, err := h.promotions.DeactivateCoupon(context.Background(), "sale")
	require.NoError(t, err)
	assert.False(t, dto.Active)
	assert.Equal(t, 1, h.usesOf(t, c.ID()))

	_, err = h.lifecycle.Cancel(context.Background(), o.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, h.usesOf(t, c.ID()))

	_, err = h.promotions.DeactivateCoupon(context.Background(), "missing")
	var de *discount.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, discount.ReasonCodeNotFound, de.Reason)
}

func TestPromotions_ListCoupons(t *testing.T) {
	h := newHarness(t, application.CheckoutOptions{})
	for _, code := range []string{"ONE", "TWO", "THREE"} {
		h.coupon(t, coupon.NewCouponParams{Code: code, Kind: coupon.KindFixed, Value: 100})
	}

	page, total, err := h.promotions.ListCoupons(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)

	page, _, err = h.promotions.ListCoupons(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestPromotions_ValidateReferral(t *testing.T) {
	h := newHarness(t, application.CheckoutOptions{})
	h.referral(t, "FRIEND", "promoter-1", "0.05")

	res, err := h.promotions.ValidateReferral(context.Background(), " friend ")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "FRIEND", res.Code)

	res, err = h.promotions.ValidateReferral(context.Background(), "stranger")
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestPromotions_UpsertService(t *testing.T) {
	h := newHarness(t, application.CheckoutOptions{})
	id := uuid.New()

	dto, err := h.promotions.UpsertService(context.Background(), application.CreateServiceRequest{ID: id, Name: "Walk", UnitPriceMinorUnits: 800})
	require.NoError(t, err)
	assert.True(t, dto.Active, "services default to active")

	inactive := false
	dto, err = h.promotions.UpsertService(context.Background(), application.CreateServiceRequest{ID: id, Name: "Walk", UnitPriceMinorUnits: 900, Active: &inactive})
	require.NoError(t, err)
	assert.False(t, dto.Active)
	assert.Equal(t, int64(900), dto.UnitPriceMinorUnits)
}
