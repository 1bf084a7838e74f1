package order_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/service-checkout/internal/domain/discount"
	"github.com/storefront/service-checkout/internal/domain/order"
	"github.com/storefront/service-checkout/internal/domain/pricing"
	"github.com/storefront/service-checkout/pkg/domain"
)

func snapshot(subtotal int64) pricing.Snapshot {
	return pricing.Snapshot{
		LineItems: []pricing.LineItem{{
			ServiceID:           uuid.New(),
			Name:                "Consultation",
			UnitPriceMinorUnits: subtotal,
			Quantity:            1,
			LineTotalMinorUnits: subtotal,
		}},
		SubtotalMinorUnits: subtotal,
	}
}

func newPending(t *testing.T) *order.Order {
	t.Helper()
	o, err := order.NewOrder("buyer-1", snapshot(5000), discount.None(), "usd")
	require.NoError(t, err)
	return o
}

func TestNewOrder_TotalIsSubtotalMinusDiscount(t *testing.T) {
	id := uuid.New()
	o, err := order.NewOrder("buyer-1", snapshot(5000), discount.Result{
		Kind:             discount.KindCoupon,
		AmountMinorUnits: 1200,
		SourceID:         &id,
		Code:             "SAVE",
	}, "usd")
	require.NoError(t, err)

	assert.Equal(t, order.StatePending, o.State())
	assert.Equal(t, int64(3800), o.TotalMinorUnits())
	assert.Equal(t, int64(1), o.Version())
	assert.True(t, o.HoldsCouponReservation())
}

func TestNewOrder_TotalNeverNegative(t *testing.T) {
	assert.Equal(t, int64(0), order.Total(1000, 2500))
	assert.Equal(t, int64(0), order.Total(1000, 1000))
	assert.Equal(t, int64(1), order.Total(1000, 999))
}

func TestNewOrder_Validation(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name    string
		buyer   string
		snap    pricing.Snapshot
		d       discount.Result
		wantErr error
	}{
		{"missing buyer", "", snapshot(100), discount.None(), domain.ErrValidation},
		{"empty cart", "b", pricing.Snapshot{}, discount.None(), pricing.ErrEmptyCart},
		{"negative discount", "b", snapshot(100), discount.Result{Kind: discount.KindCoupon, AmountMinorUnits: -1, SourceID: &id}, domain.ErrValidation},
		{"amount without source", "b", snapshot(100), discount.Result{Kind: discount.KindNone, AmountMinorUnits: 5}, domain.ErrValidation},
		{"coupon without source id", "b", snapshot(100), discount.Result{Kind: discount.KindCoupon, AmountMinorUnits: 5}, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := order.NewOrder(tt.buyer, tt.snap, tt.d, "usd")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewOrder_ReferralDoesNotHoldReservation(t *testing.T) {
	id := uuid.New()
	o, err := order.NewOrder("b", snapshot(100), discount.Result{Kind: discount.KindReferral, SourceID: &id, Code: "FRIEND"}, "usd")
	require.NoError(t, err)
	assert.False(t, o.HoldsCouponReservation())
	assert.Equal(t, int64(100), o.TotalMinorUnits())
}

func TestOrder_HappyPath(t *testing.T) {
	o := newPending(t)

	changed, err := o.RecordAuthorization("pi_1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, order.StateAuthorized, o.State())
	assert.Equal(t, "pi_1", o.PaymentAuthorizationID())

	changed, err = o.Capture()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, order.StateCaptured, o.State())
	assert.Equal(t, int64(3), o.Version())
}

func TestOrder_DuplicateEventsAreNoOps(t *testing.T) {
	o := newPending(t)
	_, err := o.RecordAuthorization("pi_1")
	require.NoError(t, err)
	version := o.Version()

	changed, err := o.RecordAuthorization("pi_1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, version, o.Version())

	_, err = o.Capture()
	require.NoError(t, err)
	changed, err = o.Capture()
	require.NoError(t, err)
	assert.False(t, changed)

	c := newPending(t)
	_, err = c.Cancel()
	require.NoError(t, err)
	changed, err = c.Cancel()
	require.NoError(t, err)
	assert.False(t, changed)

	f := newPending(t)
	_, err = f.Fail("declined")
	require.NoError(t, err)
	changed, err = f.Fail("declined again")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "declined", f.FailureReason())
}

func TestOrder_InvalidTransitions(t *testing.T) {
	authorized := func(t *testing.T) *order.Order {
		o := newPending(t)
		_, err := o.RecordAuthorization("pi_1")
		require.NoError(t, err)
		return o
	}
	captured := func(t *testing.T) *order.Order {
		o := authorized(t)
		_, err := o.Capture()
		require.NoError(t, err)
		return o
	}
	cancelled := func(t *testing.T) *order.Order {
		o := newPending(t)
		_, err := o.Cancel()
		require.NoError(t, err)
		return o
	}

	tests := []struct {
		name  string
		setup func(*testing.T) *order.Order
		apply func(*order.Order) (bool, error)
	}{
		{"capture pending", newPending, func(o *order.Order) (bool, error) { return o.Capture() }},
		{"cancel authorized", authorized, func(o *order.Order) (bool, error) { return o.Cancel() }},
		{"authorize with a different id", authorized, func(o *order.Order) (bool, error) { return o.RecordAuthorization("pi_2") }},
		{"fail captured", captured, func(o *order.Order) (bool, error) { return o.Fail("late") }},
		{"cancel captured", captured, func(o *order.Order) (bool, error) { return o.Cancel() }},
		{"authorize cancelled", cancelled, func(o *order.Order) (bool, error) { return o.RecordAuthorization("pi_1") }},
		{"capture cancelled", cancelled, func(o *order.Order) (bool, error) { return o.Capture() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.setup(t)
			before, version := o.State(), o.Version()

			changed, err := tt.apply(o)
			assert.False(t, changed)
			assert.ErrorIs(t, err, domain.ErrInvalidState)

			var te *order.TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, before, te.From)
			assert.Equal(t, "INVALID_TRANSITION", te.ErrorCode())

			assert.Equal(t, before, o.State())
			assert.Equal(t, version, o.Version())
		})
	}
}

func TestOrder_FailFromPendingAndAuthorized(t *testing.T) {
	p := newPending(t)
	changed, err := p.Fail("amount mismatch")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, order.StateFailed, p.State())

	a := newPending(t)
	_, err = a.RecordAuthorization("pi_1")
	require.NoError(t, err)
	changed, err = a.Fail("expired")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "expired", a.FailureReason())
}

func TestState_IsTerminal(t *testing.T) {
	assert.False(t, order.StatePending.IsTerminal())
	assert.False(t, order.StateAuthorized.IsTerminal())
	assert.True(t, order.StateCaptured.IsTerminal())
	assert.True(t, order.StateCancelled.IsTerminal())
	assert.True(t, order.StateFailed.IsTerminal())
}
