package referral_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/service-checkout/internal/domain/referral"
)

func TestNewReferralCode(t *testing.T) {
	rc, err := referral.NewReferralCode(" friend ", "promoter-1", decimal.RequireFromString("0.05"))
	require.NoError(t, err)
	assert.Equal(t, "FRIEND", rc.Code())
	assert.True(t, rc.Active())

	_, err = referral.NewReferralCode("X", "", decimal.RequireFromString("0.05"))
	assert.Error(t, err)
	_, err = referral.NewReferralCode("X", "p", decimal.Zero)
	assert.Error(t, err)
	_, err = referral.NewReferralCode("X", "p", decimal.RequireFromString("1.01"))
	assert.Error(t, err)
	_, err = referral.NewReferralCode("X", "p", decimal.NewFromInt(1))
	assert.NoError(t, err)
}

func TestCommissionFor_RoundsHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		rate  string
		total int64
		want  int64
	}{
		{"0.05", 20000, 1000},
		{"0.05", 1010, 51},
		{"0.05", 1009, 50},
		{"0.125", 4, 1},
		{"0.1", 0, 0},
		{"1", 999, 999},
	}
	for _, tt := range tests {
		rc, err := referral.NewReferralCode("R", "p", decimal.RequireFromString(tt.rate))
		require.NoError(t, err)
		assert.Equal(t, tt.want, rc.CommissionFor(tt.total), "rate %s total %d", tt.rate, tt.total)
	}
}
