package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/service-checkout/internal/adapter"
	"github.com/storefront/service-checkout/internal/application"
	"github.com/storefront/service-checkout/internal/domain/catalog"
	"github.com/storefront/service-checkout/internal/domain/commission"
	"github.com/storefront/service-checkout/internal/domain/coupon"
	"github.com/storefront/service-checkout/internal/domain/discount"
	"github.com/storefront/service-checkout/internal/domain/order"
	"github.com/storefront/service-checkout/internal/domain/pricing"
	"github.com/storefront/service-checkout/internal/domain/referral"
	"github.com/storefront/service-checkout/internal/metrics"
	"github.com/storefront/service-checkout/internal/repository/memory"
	"github.com/storefront/service-checkout/pkg/kafka"
)

// --- Recording publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
	fail   bool
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _ string, ev kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count(eventType, subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type == eventType && (subject == "" || ev.Subject == subject) {
			n++
		}
	}
	return n
}

// --- Fault-injecting repositories ---

type flakyOrderRepo struct {
	*memory.OrderRepository
	saveErr error
}

func (r *flakyOrderRepo) Save(ctx context.Context, o *order.Order) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	return r.OrderRepository.Save(ctx, o)
}

type flakyCommissionRepo struct {
	*memory.CommissionRepository
	mu       sync.Mutex
	failures int
}

func (r *flakyCommissionRepo) CreateIfAbsent(ctx context.Context, c *commission.Commission) (*commission.Commission, bool, error) {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return nil, false, errors.New("connection refused")
	}
	r.mu.Unlock()
	return r.CommissionRepository.CreateIfAbsent(ctx, c)
}

type flakyCouponRepo struct {
	*memory.CouponRepository
	mu              sync.Mutex
	releaseFailures int
}

func (r *flakyCouponRepo) failReleases(n int) {
	r.mu.Lock()
	r.releaseFailures = n
	r.mu.Unlock()
}

func (r *flakyCouponRepo) ReleaseUse(ctx context.Context, couponID, orderID uuid.UUID) error {
	r.mu.Lock()
	if r.releaseFailures > 0 {
		r.releaseFailures--
		r.mu.Unlock()
		return errors.New("connection reset by peer")
	}
	r.mu.Unlock()
	return r.CouponRepository.ReleaseUse(ctx, couponID, orderID)
}

// --- Harness ---

type harness struct {
	services    *memory.ServiceRepository
	coupons     *flakyCouponRepo
	referrals   *memory.ReferralRepository
	orders      *flakyOrderRepo
	commissions *flakyCommissionRepo
	processor   *adapter.MockProcessor
	publisher   *recordingPublisher

	ledger     *application.CommissionLedger
	lifecycle  *application.LifecycleManager
	gateway    *application.PaymentGateway
	checkout   *application.CheckoutService
	promotions *application.PromotionService
}

func newHarness(t *testing.T, opts application.CheckoutOptions) *harness {
	t.Helper()
	logger := zap.NewNop()
	m := metrics.NewNop()
	if opts.Currency == "" {
		opts.Currency = "usd"
	}

	h := &harness{
		services:    memory.NewServiceRepository(),
		coupons:     &flakyCouponRepo{CouponRepository: memory.NewCouponRepository()},
		referrals:   memory.NewReferralRepository(),
		orders:      &flakyOrderRepo{OrderRepository: memory.NewOrderRepository()},
		commissions: &flakyCommissionRepo{CommissionRepository: memory.NewCommissionRepository()},
		processor:   adapter.NewMockProcessor(logger),
		publisher:   &recordingPublisher{},
	}
	processor := adapter.NewResilientProcessor(h.processor, time.Second, logger).
		WithRetryInterval(time.Millisecond).
		WithObserver(m.ObserveProcessorCall)

	h.ledger = application.NewCommissionLedger(h.commissions, h.referrals, h.publisher, m, logger)
	h.lifecycle = application.NewLifecycleManager(h.orders, h.coupons, h.ledger, h.publisher, m, logger)
	h.gateway = application.NewPaymentGateway(h.orders, h.lifecycle, processor, logger)
	h.checkout = application.NewCheckoutService(
		h.services,
		discount.NewResolver(h.coupons, h.referrals),
		h.orders,
		h.lifecycle,
		h.gateway,
		opts,
		logger,
	)
	h.promotions = application.NewPromotionService(h.services, h.coupons, h.referrals, logger)
	return h
}

func (h *harness) service(t *testing.T, price int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, h.services.Upsert(context.Background(), catalog.Service{ID: id, Name: "Grooming", UnitPriceMinorUnits: price, Active: true}))
	return id
}

func (h *harness) coupon(t *testing.T, p coupon.NewCouponParams) *coupon.Coupon {
	t.Helper()
	c, err := coupon.NewCoupon(p)
	require.NoError(t, err)
	require.NoError(t, h.coupons.Save(context.Background(), c))
	return c
}

func (h *harness) referral(t *testing.T, code, promoter, rate string) *referral.ReferralCode {
	t.Helper()
	rc, err := referral.NewReferralCode(code, promoter, decimal.RequireFromString(rate))
	require.NoError(t, err)
	require.NoError(t, h.referrals.Save(context.Background(), rc))
	return rc
}

func (h *harness) usesOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	c, err := h.coupons.FindByID(context.Background(), id)
	require.NoError(t, err)
	return c.CurrentUses()
}

func (h *harness) stateOf(t *testing.T, id uuid.UUID) order.State {
	t.Helper()
	o, err := h.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o.State()
}

// placeOrder builds an order through the lifecycle manager directly.
func (h *harness) placeOrder(t *testing.T, buyer string, price int64, code string) *order.Order {
	t.Helper()
	ctx := context.Background()
	snap, err := pricing.Build(ctx, h.services, []pricing.CartItem{{ServiceID: h.service(t, price), Quantity: 1}})
	require.NoError(t, err)
	d, err := discount.NewResolver(h.coupons, h.referrals).Resolve(ctx, code, snap)
	require.NoError(t, err)
	o, err := h.lifecycle.CreateOrder(ctx, buyer, snap, d, "usd")
	require.NoError(t, err)
	return o
}

// authorize opens and confirms a mock authorization for o.
func (h *harness) authorize(t *testing.T, o *order.Order) string {
	t.Helper()
	ctx := context.Background()
	handle, err := h.gateway.BeginPayment(ctx, o)
	require.NoError(t, err)
	got, err := h.gateway.Authorize(ctx, o.ID(), handle.ID)
	require.NoError(t, err)
	require.Equal(t, order.StateAuthorized, got.State())
	return handle.ID
}
