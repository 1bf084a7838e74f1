package application

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/service-checkout/internal/domain/catalog"
	"github.com/storefront/service-checkout/internal/domain/discount"
	"github.com/storefront/service-checkout/internal/domain/order"
	"github.com/storefront/service-checkout/internal/domain/pricing"
	"github.com/storefront/service-checkout/pkg/domain"
)

// CheckoutOptions configures the orchestrator.
type CheckoutOptions struct {
	Currency    string
	AutoCapture bool
}

// CheckoutService is the application service behind every buyer-facing
// checkout use case.
type CheckoutService struct {
	catalog   catalog.Repository
	resolver  *discount.Resolver
	orders    order.Repository
	lifecycle *LifecycleManager
	gateway   *PaymentGateway
	opts      CheckoutOptions
	logger    *zap.Logger
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	services catalog.Repository,
	resolver *discount.Resolver,
	orders order.Repository,
	lifecycle *LifecycleManager,
	gateway *PaymentGateway,
	opts CheckoutOptions,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		catalog:   services,
		resolver:  resolver,
		orders:    orders,
		lifecycle: lifecycle,
		gateway:   gateway,
		opts:      opts,
		logger:    logger,
	}
}

// PlaceOrder prices the cart, resolves the code and creates a PENDING order.
func (s *CheckoutService) PlaceOrder(ctx context.Context, caller Caller, req PlaceOrderRequest) (*OrderDTO, error) {
	snap, err := pricing.Build(ctx, s.catalog, req.Items)
	if err != nil {
		return nil, err
	}

	d, err := s.resolver.Resolve(ctx, req.Code, snap)
	if err != nil {
		return nil, err
	}

	o, err := s.lifecycle.CreateOrder(ctx, caller.ID, snap, d, s.opts.Currency)
	if err != nil {
		return nil, err
	}

	dto := toOrderDTO(o)
	return &dto, nil
}

// GetOrder returns an order visible to caller.
func (s *CheckoutService) GetOrder(ctx context.Context, caller Caller, orderID uuid.UUID) (*OrderDTO, error) {
	o, err := s.loadOwned(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	dto := toOrderDTO(o)
	return &dto, nil
}

// BeginPayment opens a processor authorization for the caller's order.
func (s *CheckoutService) BeginPayment(ctx context.Context, caller Caller, orderID uuid.UUID) (*PaymentSessionDTO, error) {
	o, err := s.loadOwned(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}

	handle, err := s.gateway.BeginPayment(ctx, o)
	if err != nil {
		return nil, err
	}
	return &PaymentSessionDTO{
		OrderID:          o.ID(),
		AuthorizationID:  handle.ID,
		ClientSecret:     handle.ClientSecret,
		AmountMinorUnits: o.TotalMinorUnits(),
		Currency:         o.Currency(),
	}, nil
}

// AuthorizeOrder records the caller's completed authorization and, when
// auto-capture is enabled, captures it straight away.
func (s *CheckoutService) AuthorizeOrder(ctx context.Context, caller Caller, orderID uuid.UUID, req AuthorizeOrderRequest) (*OrderDTO, error) {
	if _, err := s.loadOwned(ctx, caller, orderID); err != nil {
		return nil, err
	}

	o, err := s.gateway.Authorize(ctx, orderID, req.AuthorizationID)
	if err != nil {
		return nil, err
	}

	if s.opts.AutoCapture && o.State() == order.StateAuthorized {
		captured, err := s.gateway.Capture(ctx, orderID)
		if err != nil {
			s.logger.Warn("auto capture failed, order stays authorized",
				zap.String("order_id", orderID.String()),
				zap.Error(err),
			)
		} else {
			o = captured
		}
	}

	dto := toOrderDTO(o)
	return &dto, nil
}

// CaptureOrder captures an authorized order (admin or fulfilment).
func (s *CheckoutService) CaptureOrder(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	o, err := s.gateway.Capture(ctx, orderID)
	if err != nil {
		return nil, err
	}
	dto := toOrderDTO(o)
	return &dto, nil
}

// CancelOrder cancels the caller's PENDING order.
func (s *CheckoutService) CancelOrder(ctx context.Context, caller Caller, orderID uuid.UUID) (*OrderDTO, error) {
	if _, err := s.loadOwned(ctx, caller, orderID); err != nil {
		return nil, err
	}

	o, err := s.lifecycle.Cancel(ctx, orderID)
	if err != nil {
		return nil, err
	}
	dto := toOrderDTO(o)
	return &dto, nil
}

// ListOrders returns a filtered page of orders (admin).
func (s *CheckoutService) ListOrders(ctx context.Context, filter order.ListFilter, page, limit int) ([]OrderDTO, int64, error) {
	orders, total, err := s.orders.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]OrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = toOrderDTO(o)
	}
	return dtos, total, nil
}

// OrderStats counts orders per state (admin). States with no orders report 0.
func (s *CheckoutService) OrderStats(ctx context.Context) (map[string]int64, error) {
	counts, err := s.orders.CountByState(ctx)
	if err != nil {
		return nil, err
	}
	stats := make(map[string]int64, len(order.AllStates))
	for _, st := range order.AllStates {
		stats[string(st)] = counts[st]
	}
	return stats, nil
}

// loadOwned returns the order if caller may act on it.
func (s *CheckoutService) loadOwned(ctx context.Context, caller Caller, orderID uuid.UUID) (*order.Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.Admin && o.BuyerRef() != caller.ID {
		return nil, domain.NewForbiddenError("order belongs to another buyer")
	}
	return o, nil
}
