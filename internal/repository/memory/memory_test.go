package memory_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/service-checkout/internal/domain/coupon"
	"github.com/storefront/service-checkout/internal/repository/memory"
)

func TestCouponRepository_ReservationsArePerOrder(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCouponRepository()
	maxUses := 2
	c, err := coupon.NewCoupon(coupon.NewCouponParams{Code: "TWO", Kind: coupon.KindFixed, Value: 100, MaxUses: &maxUses})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, c))

	first, second := uuid.New(), uuid.New()
	require.NoError(t, repo.ReserveUse(ctx, c.ID(), first))
	require.NoError(t, repo.ReserveUse(ctx, c.ID(), first))
	require.NoError(t, repo.ReserveUse(ctx, c.ID(), second))
	assert.ErrorIs(t, repo.ReserveUse(ctx, c.ID(), uuid.New()), coupon.ErrNoUsesLeft)

	require.NoError(t, repo.ReleaseUse(ctx, c.ID(), first))
	require.NoError(t, repo.ReleaseUse(ctx, c.ID(), first))
	require.NoError(t, repo.ReleaseUse(ctx, c.ID(), uuid.New()))

	got, err := repo.FindByID(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentUses())
}

func TestCouponRepository_SaveKeepsUses(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCouponRepository()
	c, err := coupon.NewCoupon(coupon.NewCouponParams{Code: "TEN", Kind: coupon.KindFixed, Value: 100})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, c))
	require.NoError(t, repo.ReserveUse(ctx, c.ID(), uuid.New()))

	c.Deactivate()
	require.NoError(t, repo.Save(ctx, c))

	got, err := repo.FindByID(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentUses())
	assert.False(t, got.Active())
}
