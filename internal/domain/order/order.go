// Package order holds the order aggregate and its payment state machine.
package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/service-checkout/internal/domain/discount"
	"github.com/storefront/service-checkout/internal/domain/pricing"
	"github.com/storefront/service-checkout/pkg/domain"
)

// State represents where an order is in the payment lifecycle.
type State string

const (
	StatePending    State = "PENDING"
	StateAuthorized State = "AUTHORIZED"
	StateCaptured   State = "CAPTURED"
	StateCancelled  State = "CANCELLED"
	StateFailed     State = "FAILED"
)

// AllStates lists every state in lifecycle order.
var AllStates = []State{StatePending, StateAuthorized, StateCaptured, StateCancelled, StateFailed}

// IsTerminal reports whether no transition can leave s.
func (s State) IsTerminal() bool {
	return s == StateCaptured || s == StateCancelled || s == StateFailed
}

// Event names a lifecycle input. Used for error reporting and metrics.
type Event string

const (
	EventRecordAuthorization Event = "recordAuthorization"
	EventCapture             Event = "capture"
	EventCancel              Event = "cancel"
	EventFail                Event = "fail"
)

// TransitionError is InvalidTransition: the event is not allowed from the
// current state. It signals a client or processor replay bug and is never retried.
type TransitionError struct {
	OrderID uuid.UUID
	From    State
	Event   Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: %s is not allowed in state %s", e.OrderID, e.Event, e.From)
}

func (e *TransitionError) Is(target error) bool { return target == domain.ErrInvalidState }

func (e *TransitionError) ErrorCode() string { return "INVALID_TRANSITION" }

func (e *TransitionError) ErrorDetails() map[string]any {
	return map[string]any{"order_id": e.OrderID.String(), "state": string(e.From), "event": string(e.Event)}
}

// Order is the aggregate root of a checkout. Snapshot, discount and total are
// frozen at creation; only state, authorization id and failure reason move.
type Order struct {
	id                     uuid.UUID
	buyerRef               string
	snapshot               pricing.Snapshot
	discount               discount.Result
	totalMinorUnits        int64
	currency               string
	state                  State
	paymentAuthorizationID string
	failureReason          string
	version                int64
	createdAt              time.Time
	updatedAt              time.Time
}

// NewOrder creates a PENDING order. The total is max(subtotal - discount, 0).
func NewOrder(buyerRef string, snap pricing.Snapshot, d discount.Result, currency string) (*Order, error) {
	if buyerRef == "" {
		return nil, domain.NewValidationError("buyer reference is required")
	}
	if len(snap.LineItems) == 0 {
		return nil, pricing.ErrEmptyCart
	}
	if d.Kind == "" {
		d.Kind = discount.KindNone
	}
	if d.AmountMinorUnits < 0 {
		return nil, domain.NewValidationError("discount amount cannot be negative")
	}
	if d.Kind == discount.KindNone && d.AmountMinorUnits != 0 {
		return nil, domain.NewValidationError("discount amount without a discount source")
	}
	if d.Kind != discount.KindNone && d.SourceID == nil {
		return nil, domain.NewValidationError("discount source is required")
	}

	now := time.Now().UTC()
	return &Order{
		id:              uuid.New(),
		buyerRef:        buyerRef,
		snapshot:        snap,
		discount:        d,
		totalMinorUnits: Total(snap.SubtotalMinorUnits, d.AmountMinorUnits),
		currency:        currency,
		state:           StatePending,
		version:         1,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// Total returns max(subtotal - discount, 0).
func Total(subtotalMinorUnits, discountMinorUnits int64) int64 {
	if total := subtotalMinorUnits - discountMinorUnits; total > 0 {
		return total
	}
	return 0
}

// --- Getters ---

func (o *Order) ID() uuid.UUID                  { return o.id }
func (o *Order) BuyerRef() string               { return o.buyerRef }
func (o *Order) Snapshot() pricing.Snapshot     { return o.snapshot }
func (o *Order) Discount() discount.Result      { return o.discount }
func (o *Order) TotalMinorUnits() int64         { return o.totalMinorUnits }
func (o *Order) Currency() string               { return o.currency }
func (o *Order) State() State                   { return o.state }
func (o *Order) PaymentAuthorizationID() string { return o.paymentAuthorizationID }
func (o *Order) FailureReason() string          { return o.failureReason }
func (o *Order) Version() int64                 { return o.version }
func (o *Order) CreatedAt() time.Time           { return o.createdAt }
func (o *Order) UpdatedAt() time.Time           { return o.updatedAt }

// HoldsCouponReservation reports whether the order reserved a coupon use at creation.
func (o *Order) HoldsCouponReservation() bool {
	return o.discount.Kind == discount.KindCoupon && o.discount.SourceID != nil
}

// --- State transitions ---
//
// Each transition returns changed=false with a nil error when the event is a
// duplicate of the one that produced the current state.

// RecordAuthorization moves PENDING to AUTHORIZED.
func (o *Order) RecordAuthorization(authorizationID string) (bool, error) {
	if authorizationID == "" {
		return false, domain.NewValidationError("authorization id is required")
	}
	switch o.state {
	case StatePending:
		o.paymentAuthorizationID = authorizationID
		o.touch(StateAuthorized)
		return true, nil
	case StateAuthorized:
		if o.paymentAuthorizationID == authorizationID {
			return false, nil
		}
	}
	return false, o.invalid(EventRecordAuthorization)
}

// Capture moves AUTHORIZED to CAPTURED.
func (o *Order) Capture() (bool, error) {
	switch o.state {
	case StateAuthorized:
		o.touch(StateCaptured)
		return true, nil
	case StateCaptured:
		return false, nil
	}
	return false, o.invalid(EventCapture)
}

// Cancel moves PENDING to CANCELLED. Authorized orders cannot be cancelled.
func (o *Order) Cancel() (bool, error) {
	switch o.state {
	case StatePending:
		o.touch(StateCancelled)
		return true, nil
	case StateCancelled:
		return false, nil
	}
	return false, o.invalid(EventCancel)
}

// Fail moves PENDING or AUTHORIZED to FAILED, recording why.
func (o *Order) Fail(reason string) (bool, error) {
	switch o.state {
	case StatePending, StateAuthorized:
		o.failureReason = reason
		o.touch(StateFailed)
		return true, nil
	case StateFailed:
		return false, nil
	}
	return false, o.invalid(EventFail)
}

func (o *Order) touch(to State) {
	o.state = to
	o.version++
	o.updatedAt = time.Now().UTC()
}

func (o *Order) invalid(ev Event) error {
	return &TransitionError{OrderID: o.id, From: o.state, Event: ev}
}

// --- Reconstitution (used by repository to rebuild from persistence) ---

// Reconstitute rebuilds an Order from persisted data.
func Reconstitute(
	id uuid.UUID,
	buyerRef string,
	snap pricing.Snapshot,
	d discount.Result,
	totalMinorUnits int64,
	currency string,
	state State,
	paymentAuthorizationID, failureReason string,
	version int64,
	createdAt, updatedAt time.Time,
) *Order {
	return &Order{
		id:                     id,
		buyerRef:               buyerRef,
		snapshot:               snap,
		discount:               d,
		totalMinorUnits:        totalMinorUnits,
		currency:               currency,
		state:                  state,
		paymentAuthorizationID: paymentAuthorizationID,
		failureReason:          failureReason,
		version:                version,
		createdAt:              createdAt,
		updatedAt:              updatedAt,
	}
}

// ErrAuthorizationInUse is returned by Repository.Update when the
// authorization id is already bound to a different order.
var ErrAuthorizationInUse = &domain.DomainError{
	Err:     domain.ErrConflict,
	Code:    "AUTHORIZATION_IN_USE",
	Message: "payment authorization is already bound to another order",
}
