// Package pricing turns a cart into an immutable priced snapshot.
package pricing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/service-checkout/internal/domain/catalog"
	"github.com/storefront/service-checkout/pkg/domain"
)

// ErrEmptyCart is returned when a snapshot is requested for no items.
var ErrEmptyCart = &domain.DomainError{Err: domain.ErrValidation, Code: "EMPTY_CART", Message: "cart is empty"}

// MaxQuantity caps how many units of one service a cart may hold.
const MaxQuantity = 10_000

// CartItem is one buyer selection.
type CartItem struct {
	ServiceID uuid.UUID `json:"service_id"`
	Quantity  int       `json:"quantity"`
}

// LineItem is a priced cart item. UnitPriceMinorUnits is copied from the
// catalog at snapshot time and never re-read.
type LineItem struct {
	ServiceID           uuid.UUID `json:"service_id"`
	Name                string    `json:"name"`
	UnitPriceMinorUnits int64     `json:"unit_price_minor_units"`
	Quantity            int       `json:"quantity"`
	LineTotalMinorUnits int64     `json:"line_total_minor_units"`
}

// Snapshot is the priced cart embedded into an order.
type Snapshot struct {
	LineItems          []LineItem `json:"line_items"`
	SubtotalMinorUnits int64      `json:"subtotal_minor_units"`
	TakenAt            time.Time  `json:"taken_at"`
}

// InvalidQuantityError reports a cart item with quantity outside 1..MaxQuantity.
type InvalidQuantityError struct {
	ServiceID uuid.UUID
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be between 1 and %d for service %s (got %d)", MaxQuantity, e.ServiceID, e.Quantity)
}

func (e *InvalidQuantityError) Is(target error) bool { return target == domain.ErrValidation }

func (e *InvalidQuantityError) ErrorCode() string { return "INVALID_QUANTITY" }

func (e *InvalidQuantityError) ErrorDetails() map[string]any {
	return map[string]any{"service_id": e.ServiceID.String(), "quantity": e.Quantity, "max_quantity": MaxQuantity}
}

// ErrCartTooLarge is returned when a line total or the subtotal does not fit in
// int64 minor units.
var ErrCartTooLarge = &domain.DomainError{Err: domain.ErrValidation, Code: "CART_TOO_LARGE", Message: "cart total exceeds the supported amount"}

// ServiceUnavailableError reports a cart item whose service is missing or inactive.
type ServiceUnavailableError struct {
	ServiceID uuid.UUID
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("service %s is not available", e.ServiceID)
}

func (e *ServiceUnavailableError) Is(target error) bool { return target == domain.ErrValidation }

func (e *ServiceUnavailableError) ErrorCode() string { return "SERVICE_UNAVAILABLE" }

func (e *ServiceUnavailableError) ErrorDetails() map[string]any {
	return map[string]any{"service_id": e.ServiceID.String()}
}

// Build prices items against the current catalog. Items naming the same
// service are merged; line order follows first appearance in the cart.
func Build(ctx context.Context, services catalog.Repository, items []CartItem) (Snapshot, error) {
	if len(items) == 0 {
		return Snapshot{}, ErrEmptyCart
	}

	order := make([]uuid.UUID, 0, len(items))
	quantities := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		if item.Quantity < 1 || item.Quantity > MaxQuantity {
			return Snapshot{}, &InvalidQuantityError{ServiceID: item.ServiceID, Quantity: item.Quantity}
		}
		if _, seen := quantities[item.ServiceID]; !seen {
			order = append(order, item.ServiceID)
		}
		merged := quantities[item.ServiceID] + item.Quantity
		if merged > MaxQuantity {
			return Snapshot{}, &InvalidQuantityError{ServiceID: item.ServiceID, Quantity: merged}
		}
		quantities[item.ServiceID] = merged
	}

	found, err := services.FindByIDs(ctx, order)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load services: %w", err)
	}
	byID := make(map[uuid.UUID]catalog.Service, len(found))
	for _, s := range found {
		byID[s.ID] = s
	}

	snap := Snapshot{
		LineItems: make([]LineItem, 0, len(order)),
		TakenAt:   time.Now().UTC(),
	}
	for _, id := range order {
		svc, ok := byID[id]
		if !ok || !svc.Active {
			return Snapshot{}, &ServiceUnavailableError{ServiceID: id}
		}
		qty := quantities[id]
		lineTotal, ok := mulMinorUnits(svc.UnitPriceMinorUnits, int64(qty))
		if !ok {
			return Snapshot{}, ErrCartTooLarge
		}
		if lineTotal > math.MaxInt64-snap.SubtotalMinorUnits {
			return Snapshot{}, ErrCartTooLarge
		}
		snap.LineItems = append(snap.LineItems, LineItem{
			ServiceID:           id,
			Name:                svc.Name,
			UnitPriceMinorUnits: svc.UnitPriceMinorUnits,
			Quantity:            qty,
			LineTotalMinorUnits: lineTotal,
		})
		snap.SubtotalMinorUnits += lineTotal
	}
	return snap, nil
}

// mulMinorUnits multiplies a non-negative price by a positive quantity,
// reporting false on int64 overflow.
func mulMinorUnits(price, qty int64) (int64, bool) {
	if price < 0 || qty < 1 {
		return 0, false
	}
	if price > math.MaxInt64/qty {
		return 0, false
	}
	return price * qty, true
}
