// Package memory provides in-process repositories for unit tests. They follow
// the same concurrency contracts as the database implementations.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/service-checkout/internal/domain/catalog"
	"github.com/storefront/service-checkout/internal/domain/commission"
	"github.com/storefront/service-checkout/internal/domain/coupon"
	"github.com/storefront/service-checkout/internal/domain/order"
	"github.com/storefront/service-checkout/internal/domain/referral"
	"github.com/storefront/service-checkout/pkg/domain"
)

// ServiceRepository is an in-memory catalog.Repository.
type ServiceRepository struct {
	mu       sync.RWMutex
	services map[uuid.UUID]catalog.Service
}

func NewServiceRepository() *ServiceRepository {
	return &ServiceRepository{services: make(map[uuid.UUID]catalog.Service)}
}

func (r *ServiceRepository) FindByIDs(_ context.Context, ids []uuid.UUID) ([]catalog.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []catalog.Service
	for _, id := range ids {
		if s, ok := r.services[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *ServiceRepository) Upsert(_ context.Context, s catalog.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[s.ID] = s
	return nil
}

// CouponRepository is an in-memory coupon.Repository. Reservations are
// tracked per order under the repository lock.
type CouponRepository struct {
	mu           sync.Mutex
	coupons      map[uuid.UUID]*coupon.Coupon
	reservations map[uuid.UUID]reservation
}

type reservation struct {
	couponID uuid.UUID
	released bool
}

func NewCouponRepository() *CouponRepository {
	return &CouponRepository{
		coupons:      make(map[uuid.UUID]*coupon.Coupon),
		reservations: make(map[uuid.UUID]reservation),
	}
}

func (r *CouponRepository) Save(_ context.Context, c *coupon.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.coupons {
		if id != c.ID() && existing.Code() == c.Code() {
			return domain.NewConflictError("coupon code already exists")
		}
	}
	uses := 0
	if existing, ok := r.coupons[c.ID()]; ok {
		uses = existing.CurrentUses()
	}
	r.coupons[c.ID()] = withUses(c, uses)
	return nil
}

func (r *CouponRepository) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	normalized := coupon.NormalizeCode(code)
	for _, c := range r.coupons {
		if c.Code() == normalized {
			return clone(c), nil
		}
	}
	return nil, domain.NewNotFoundError("Coupon", code)
}

func (r *CouponRepository) FindByID(_ context.Context, id uuid.UUID) (*coupon.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[id]
	if !ok {
		return nil, domain.NewNotFoundError("Coupon", id.String())
	}
	return clone(c), nil
}

func (r *CouponRepository) List(_ context.Context, page, limit int) ([]*coupon.Coupon, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*coupon.Coupon, 0, len(r.coupons))
	for _, c := range r.coupons {
		all = append(all, clone(c))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt().After(all[j].CreatedAt()) })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r *CouponRepository) ReserveUse(_ context.Context, couponID, orderID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[couponID]
	if !ok {
		return domain.NewNotFoundError("Coupon", couponID.String())
	}
	if _, held := r.reservations[orderID]; held {
		return nil
	}
	if !c.Active() || c.IsExhausted() {
		return coupon.ErrNoUsesLeft
	}
	r.coupons[couponID] = withUses(c, c.CurrentUses()+1)
	r.reservations[orderID] = reservation{couponID: couponID}
	return nil
}

func (r *CouponRepository) ReleaseUse(_ context.Context, couponID, orderID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[orderID]
	if !ok || res.released || res.couponID != couponID {
		return nil
	}
	res.released = true
	r.reservations[orderID] = res
	if c, ok := r.coupons[couponID]; ok && c.CurrentUses() > 0 {
		r.coupons[couponID] = withUses(c, c.CurrentUses()-1)
	}
	return nil
}

func clone(c *coupon.Coupon) *coupon.Coupon { return withUses(c, c.CurrentUses()) }

func withUses(c *coupon.Coupon, uses int) *coupon.Coupon {
	return coupon.Reconstruct(
		c.ID(), c.Code(), c.Kind(), c.Value(),
		c.MinOrderAmountMinorUnits(), c.MaxUses(), uses,
		c.ExpiresAt(), c.Active(), c.CreatedAt(), time.Now().UTC(),
	)
}

// ReferralRepository is an in-memory referral.Repository.
type ReferralRepository struct {
	mu    sync.RWMutex
	codes map[uuid.UUID]*referral.ReferralCode
}

func NewReferralRepository() *ReferralRepository {
	return &ReferralRepository{codes: make(map[uuid.UUID]*referral.ReferralCode)}
}

func (r *ReferralRepository) Save(_ context.Context, rc *referral.ReferralCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.codes {
		if id != rc.ID() && existing.Code() == rc.Code() {
			return domain.NewConflictError("referral code already exists")
		}
	}
	r.codes[rc.ID()] = rc
	return nil
}

func (r *ReferralRepository) FindByCode(_ context.Context, code string) (*referral.ReferralCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	normalized := coupon.NormalizeCode(code)
	for _, rc := range r.codes {
		if rc.Code() == normalized {
			return rc, nil
		}
	}
	return nil, domain.NewNotFoundError("ReferralCode", code)
}

func (r *ReferralRepository) FindByID(_ context.Context, id uuid.UUID) (*referral.ReferralCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rc, ok := r.codes[id]
	if !ok {
		return nil, domain.NewNotFoundError("ReferralCode", id.String())
	}
	return rc, nil
}

// OrderRepository is an in-memory order.Repository with the same optimistic
// concurrency contract as the database implementation.
type OrderRepository struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*order.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[uuid.UUID]*order.Order)}
}

func (r *OrderRepository) Save(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[o.ID()]; exists {
		return domain.NewConflictError("order already exists")
	}
	r.orders[o.ID()] = copyOrder(o)
	return nil
}

func (r *OrderRepository) Update(_ context.Context, o *order.Order, expectedState order.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[o.ID()]
	if !ok || stored.Version() != o.Version()-1 || stored.State() != expectedState {
		return domain.NewConflictError("order was modified by another transaction")
	}
	if id := o.PaymentAuthorizationID(); id != "" {
		for otherID, other := range r.orders {
			if otherID != o.ID() && other.PaymentAuthorizationID() == id {
				return order.ErrAuthorizationInUse
			}
		}
	}
	r.orders[o.ID()] = copyOrder(o)
	return nil
}

func (r *OrderRepository) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.NewNotFoundError("Order", id.String())
	}
	return copyOrder(o), nil
}

func (r *OrderRepository) FindByAuthorizationID(_ context.Context, authorizationID string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.PaymentAuthorizationID() == authorizationID {
			return copyOrder(o), nil
		}
	}
	return nil, domain.NewNotFoundError("Order", authorizationID)
}

func (r *OrderRepository) List(_ context.Context, filter order.ListFilter, page, limit int) ([]*order.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*order.Order
	for _, o := range r.orders {
		if filter.State != "" && o.State() != filter.State {
			continue
		}
		if filter.BuyerRef != "" && o.BuyerRef() != filter.BuyerRef {
			continue
		}
		matched = append(matched, copyOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt().After(matched[j].CreatedAt()) })
	return paginate(matched, page, limit), int64(len(matched)), nil
}

func (r *OrderRepository) CountByState(_ context.Context) (map[order.State]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[order.State]int64)
	for _, o := range r.orders {
		counts[o.State()]++
	}
	return counts, nil
}

func copyOrder(o *order.Order) *order.Order {
	return order.Reconstitute(
		o.ID(), o.BuyerRef(), o.Snapshot(), o.Discount(), o.TotalMinorUnits(), o.Currency(),
		o.State(), o.PaymentAuthorizationID(), o.FailureReason(), o.Version(),
		o.CreatedAt(), o.UpdatedAt(),
	)
}

// CommissionRepository is an in-memory commission.Repository.
type CommissionRepository struct {
	mu      sync.Mutex
	byOrder map[uuid.UUID]*commission.Commission
}

func NewCommissionRepository() *CommissionRepository {
	return &CommissionRepository{byOrder: make(map[uuid.UUID]*commission.Commission)}
}

func (r *CommissionRepository) CreateIfAbsent(_ context.Context, c *commission.Commission) (*commission.Commission, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byOrder[c.OrderID]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *c
	r.byOrder[c.OrderID] = &cp
	return c, true, nil
}

func (r *CommissionRepository) FindByOrderID(_ context.Context, orderID uuid.UUID) (*commission.Commission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byOrder[orderID]
	if !ok {
		return nil, domain.NewNotFoundError("Commission", orderID.String())
	}
	cp := *c
	return &cp, nil
}

func (r *CommissionRepository) ListByPromoter(_ context.Context, promoterID string, page, limit int) ([]*commission.Commission, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*commission.Commission
	for _, c := range r.byOrder {
		if c.PromoterID == promoterID {
			cp := *c
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, page, limit), int64(len(matched)), nil
}

func (r *CommissionRepository) TotalByPromoter(_ context.Context, promoterID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, c := range r.byOrder {
		if c.PromoterID == promoterID {
			total += c.AmountMinorUnits
		}
	}
	return total, nil
}

// Count returns how many commissions are stored.
func (r *CommissionRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byOrder)
}

func paginate[T any](items []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return items
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
