package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/service-checkout/internal/domain/coupon"
	"github.com/storefront/service-checkout/internal/domain/discount"
	"github.com/storefront/service-checkout/internal/domain/order"
	"github.com/storefront/service-checkout/internal/domain/pricing"
	"github.com/storefront/service-checkout/internal/metrics"
	"github.com/storefront/service-checkout/internal/saga"
	"github.com/storefront/service-checkout/pkg/domain"
)

// maxUpdateAttempts bounds reload-and-reapply after an optimistic conflict.
const maxUpdateAttempts = 3

// LifecycleManager owns every order state change. All writes go through the
// repository's versioned update so concurrent callers serialize per order.
type LifecycleManager struct {
	orders  order.Repository
	coupons coupon.Repository
	ledger  *CommissionLedger
	events  emitter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewLifecycleManager creates a new LifecycleManager.
func NewLifecycleManager(
	orders order.Repository,
	coupons coupon.Repository,
	ledger *CommissionLedger,
	publisher EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *LifecycleManager {
	return &LifecycleManager{
		orders:  orders,
		coupons: coupons,
		ledger:  ledger,
		events:  emitter{publisher: publisher, logger: logger},
		metrics: m,
		logger:  logger,
	}
}

// CreateOrder persists a PENDING order. A coupon discount reserves one use
// first; the reservation is released if the order cannot be saved.
func (m *LifecycleManager) CreateOrder(ctx context.Context, buyerRef string, snap pricing.Snapshot, d discount.Result, currency string) (*order.Order, error) {
	o, err := order.NewOrder(buyerRef, snap, d, currency)
	if err != nil {
		return nil, err
	}

	s := saga.New("create_order", m.logger)
	if o.HoldsCouponReservation() {
		couponID := *d.SourceID
		s.AddStep(saga.Step{
			Name: "reserve_coupon_use",
			Execute: func(ctx context.Context) error {
				return m.reserveCoupon(ctx, couponID, o.ID(), d.Code)
			},
			Compensate: func(ctx context.Context) error {
				m.metrics.CouponReservations.WithLabelValues("release", "compensated").Inc()
				return m.coupons.ReleaseUse(ctx, couponID, o.ID())
			},
		})
	}
	s.AddStep(saga.Step{
		Name: "save_order",
		Execute: func(ctx context.Context) error {
			return m.orders.Save(ctx, o)
		},
	})

	if err := s.Execute(ctx); err != nil {
		var de *discount.Error
		if errors.As(err, &de) {
			return nil, de
		}
		if saga.CompensationFailed(err) {
			m.logger.Error("order creation rolled back incompletely",
				zap.String("order_id", o.ID().String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	m.metrics.OrdersCreated.Inc()
	m.logger.Info("order created",
		zap.String("order_id", o.ID().String()),
		zap.String("buyer_ref", o.BuyerRef()),
		zap.String("discount_kind", string(d.Kind)),
		zap.Int64("total_minor_units", o.TotalMinorUnits()),
	)
	m.events.orderCreated(ctx, o)
	return o, nil
}

func (m *LifecycleManager) reserveCoupon(ctx context.Context, couponID, orderID uuid.UUID, code string) error {
	err := m.coupons.ReserveUse(ctx, couponID, orderID)
	switch {
	case err == nil:
		m.metrics.CouponReservations.WithLabelValues("reserve", "ok").Inc()
		return nil
	case errors.Is(err, coupon.ErrNoUsesLeft):
		m.metrics.CouponReservations.WithLabelValues("reserve", "exhausted").Inc()
		var maxUses *int
		if c, findErr := m.coupons.FindByID(ctx, couponID); findErr == nil {
			maxUses = c.MaxUses()
		}
		return discount.NewCodeExhausted(code, maxUses)
	case domain.IsNotFound(err):
		return discount.NewCodeNotFound(code)
	default:
		m.metrics.CouponReservations.WithLabelValues("reserve", "error").Inc()
		return fmt.Errorf("reserve coupon use: %w", err)
	}
}

// RecordAuthorization moves a PENDING order to AUTHORIZED.
func (m *LifecycleManager) RecordAuthorization(ctx context.Context, orderID uuid.UUID, authorizationID string) (*order.Order, error) {
	o, _, err := m.transition(ctx, orderID, order.StateAuthorized, func(o *order.Order) (bool, error) {
		return o.RecordAuthorization(authorizationID)
	})
	return o, err
}

// Capture moves an AUTHORIZED order to CAPTURED and records the referral
// commission. A duplicate capture still consults the ledger so a commission
// lost to a crash after the state write is recovered.
func (m *LifecycleManager) Capture(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	o, _, err := m.transition(ctx, orderID, order.StateCaptured, func(o *order.Order) (bool, error) {
		return o.Capture()
	})
	if err != nil {
		return nil, err
	}
	if _, _, err := m.ledger.RecordIfAbsent(ctx, o); err != nil {
		m.logger.Error("commission not recorded for captured order",
			zap.String("order_id", o.ID().String()),
			zap.Error(err),
		)
		return o, err
	}
	return o, nil
}

// Cancel moves a PENDING order to CANCELLED and gives back its coupon use.
// A duplicate cancel retries a release that failed earlier.
func (m *LifecycleManager) Cancel(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	o, _, err := m.transition(ctx, orderID, order.StateCancelled, func(o *order.Order) (bool, error) {
		return o.Cancel()
	})
	if err != nil {
		return nil, err
	}
	if err := m.SettleReservation(ctx, o); err != nil {
		return o, err
	}
	return o, nil
}

// Fail moves a PENDING or AUTHORIZED order to FAILED and gives back its coupon
// use. A duplicate fail retries a release that failed earlier.
func (m *LifecycleManager) Fail(ctx context.Context, orderID uuid.UUID, reason string) (*order.Order, error) {
	o, _, err := m.transition(ctx, orderID, order.StateFailed, func(o *order.Order) (bool, error) {
		return o.Fail(reason)
	})
	if err != nil {
		return nil, err
	}
	if err := m.SettleReservation(ctx, o); err != nil {
		return o, err
	}
	return o, nil
}

// transition loads the order, applies the event and writes it back guarded by
// version and state. On a lost race the order is reloaded and the event is
// applied to the winner's state, where a duplicate becomes a no-op.
func (m *LifecycleManager) transition(ctx context.Context, orderID uuid.UUID, to order.State, apply func(*order.Order) (bool, error)) (*order.Order, bool, error) {
	for attempt := 1; ; attempt++ {
		o, err := m.orders.FindByID(ctx, orderID)
		if err != nil {
			return nil, false, err
		}

		from := o.State()
		changed, err := apply(o)
		if err != nil {
			var te *order.TransitionError
			if errors.As(err, &te) {
				m.metrics.Transitions.WithLabelValues(string(to), "rejected").Inc()
				m.logger.Warn("invalid order transition",
					zap.String("order_id", orderID.String()),
					zap.String("state", string(te.From)),
					zap.String("event", string(te.Event)),
				)
			}
			return nil, false, err
		}
		if !changed {
			m.metrics.Transitions.WithLabelValues(string(to), "duplicate").Inc()
			return o, false, nil
		}

		err = m.orders.Update(ctx, o, from)
		if err == nil {
			m.metrics.Transitions.WithLabelValues(string(to), "applied").Inc()
			m.logger.Info("order transitioned",
				zap.String("order_id", orderID.String()),
				zap.String("from", string(from)),
				zap.String("to", string(o.State())),
			)
			m.events.orderTransitioned(ctx, from, o)
			return o, true, nil
		}

		if errors.Is(err, order.ErrAuthorizationInUse) || !errors.Is(err, domain.ErrConflict) || attempt >= maxUpdateAttempts {
			return nil, false, err
		}
		m.logger.Debug("order update lost a race, reloading",
			zap.String("order_id", orderID.String()),
			zap.Int("attempt", attempt),
		)
	}
}

// SettleReservation gives back the coupon use held by a CANCELLED or FAILED
// order. Releases are idempotent per order, so it is safe to call on every
// replay until one succeeds.
func (m *LifecycleManager) SettleReservation(ctx context.Context, o *order.Order) error {
	if !o.HoldsCouponReservation() {
		return nil
	}
	if st := o.State(); st != order.StateCancelled && st != order.StateFailed {
		return nil
	}
	couponID := *o.Discount().SourceID
	if err := m.coupons.ReleaseUse(ctx, couponID, o.ID()); err != nil {
		m.metrics.CouponReservations.WithLabelValues("release", "error").Inc()
		m.logger.Error("failed to release coupon use",
			zap.String("order_id", o.ID().String()),
			zap.String("coupon_id", couponID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("release coupon use: %w", err)
	}
	m.metrics.CouponReservations.WithLabelValues("release", "ok").Inc()
	return nil
}
