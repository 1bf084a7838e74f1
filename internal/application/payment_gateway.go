package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/service-checkout/internal/adapter"
	"github.com/storefront/service-checkout/internal/domain/order"
	"github.com/storefront/service-checkout/pkg/domain"
)

// ErrAuthorizationPending is returned when the buyer has not finished the
// processor flow yet. The order stays PENDING.
var ErrAuthorizationPending = &domain.DomainError{
	Err:     domain.ErrConflict,
	Code:    "AUTHORIZATION_PENDING",
	Message: "payment authorization is not complete yet",
}

// PaymentGateway verifies processor authorizations against orders and drives
// capture. It never trusts a client or callback payload for amount or status.
type PaymentGateway struct {
	orders    order.Repository
	lifecycle *LifecycleManager
	processor adapter.PaymentProcessor
	logger    *zap.Logger
}

// NewPaymentGateway creates a new PaymentGateway.
func NewPaymentGateway(
	orders order.Repository,
	lifecycle *LifecycleManager,
	processor adapter.PaymentProcessor,
	logger *zap.Logger,
) *PaymentGateway {
	return &PaymentGateway{
		orders:    orders,
		lifecycle: lifecycle,
		processor: processor,
		logger:    logger,
	}
}

// BeginPayment opens a processor authorization for a PENDING order.
func (g *PaymentGateway) BeginPayment(ctx context.Context, o *order.Order) (adapter.AuthorizationHandle, error) {
	if o.State() != order.StatePending {
		return adapter.AuthorizationHandle{}, &order.TransitionError{OrderID: o.ID(), From: o.State(), Event: order.EventRecordAuthorization}
	}

	handle, err := g.processor.CreateAuthorization(ctx, adapter.AuthorizationRequest{
		OrderID:          o.ID(),
		AmountMinorUnits: o.TotalMinorUnits(),
		Currency:         o.Currency(),
	})
	if err != nil {
		return adapter.AuthorizationHandle{}, domain.NewUpstreamError("failed to create payment authorization", err)
	}

	g.logger.Info("payment authorization opened",
		zap.String("order_id", o.ID().String()),
		zap.String("authorization_id", handle.ID),
	)
	return handle, nil
}

// Authorize confirms authorizationID with the processor and records it on the
// order. Declined, expired or mismatched authorizations fail the order, as
// does a processor that cannot be reached after the retry.
func (g *PaymentGateway) Authorize(ctx context.Context, orderID uuid.UUID, authorizationID string) (*order.Order, error) {
	if strings.TrimSpace(authorizationID) == "" {
		return nil, domain.NewValidationError("authorization id is required")
	}

	o, err := g.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case o.State() == order.StateAuthorized && o.PaymentAuthorizationID() == authorizationID:
		return o, nil
	case o.State() != order.StatePending:
		return nil, &order.TransitionError{OrderID: o.ID(), From: o.State(), Event: order.EventRecordAuthorization}
	}

	status, err := g.processor.ConfirmAuthorization(ctx, authorizationID)
	if err != nil {
		if adapter.IsTransient(err) {
			g.logger.Warn("authorization could not be verified, failing order",
				zap.String("order_id", orderID.String()),
				zap.String("authorization_id", authorizationID),
				zap.Error(err),
			)
			return g.lifecycle.Fail(ctx, orderID, "authorization verification unavailable: "+err.Error())
		}
		return nil, domain.NewUpstreamError("failed to verify payment authorization", err)
	}

	return g.settleAuthorization(ctx, o, authorizationID, status)
}

// settleAuthorization applies a verified processor status to a PENDING order.
func (g *PaymentGateway) settleAuthorization(ctx context.Context, o *order.Order, authorizationID string, status adapter.AuthorizationStatus) (*order.Order, error) {
	if reason := mismatch(o, status); reason != "" {
		g.logger.Warn("authorization does not match order",
			zap.String("order_id", o.ID().String()),
			zap.String("authorization_id", authorizationID),
			zap.String("reason", reason),
		)
		return g.lifecycle.Fail(ctx, o.ID(), reason)
	}

	switch status.Status {
	case adapter.StatusAuthorized, adapter.StatusCaptured:
		return g.lifecycle.RecordAuthorization(ctx, o.ID(), authorizationID)
	case adapter.StatusDeclined, adapter.StatusExpired:
		return g.lifecycle.Fail(ctx, o.ID(), declineReason(status.Status, status.DeclineReason))
	default:
		return nil, ErrAuthorizationPending
	}
}

// Capture settles the order's authorization. A processor that accepted the
// capture is never asked twice: after a transient failure the outcome is read
// back and the order is settled on what the processor reports.
func (g *PaymentGateway) Capture(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	o, err := g.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.State() != order.StateAuthorized {
		// CAPTURED is a duplicate and heals the ledger; anything else is rejected.
		return g.lifecycle.Capture(ctx, orderID)
	}

	result, err := g.processor.Capture(ctx, o.PaymentAuthorizationID(), adapter.CaptureIdempotencyKey(orderID))
	if err != nil {
		if !adapter.IsTransient(err) {
			return nil, domain.NewUpstreamError("capture rejected by processor", err)
		}
		g.logger.Warn("capture outcome unknown, reading back",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		status, readErr := g.processor.ConfirmAuthorization(ctx, o.PaymentAuthorizationID())
		if readErr != nil {
			return nil, domain.NewUpstreamError("capture outcome unknown", errors.Join(err, readErr))
		}
		result = adapter.CaptureResult{Status: status.Status, DeclineReason: status.DeclineReason}
	}

	switch result.Status {
	case adapter.StatusCaptured:
		return g.lifecycle.Capture(ctx, orderID)
	case adapter.StatusDeclined, adapter.StatusExpired:
		return g.lifecycle.Fail(ctx, orderID, declineReason(result.Status, result.DeclineReason))
	default:
		return nil, domain.NewUpstreamError("capture not completed", fmt.Errorf("processor reports %s", result.Status))
	}
}

// HandleProcessorEvent reacts to a webhook or Kafka callback. The event only
// identifies the authorization; the decision is made on a fresh read from the
// processor. Unknown orders and stale events are ignored, except that a
// replay for a CANCELLED or FAILED order retries its coupon release.
func (g *PaymentGateway) HandleProcessorEvent(ctx context.Context, ev adapter.ProcessorEvent) error {
	o, err := g.findEventOrder(ctx, ev)
	if err != nil {
		if domain.IsNotFound(err) {
			g.logger.Info("processor event for unknown order, ignoring",
				zap.String("event_id", ev.ID),
				zap.String("authorization_id", ev.AuthorizationID),
			)
			return nil
		}
		return err
	}
	if o.State().IsTerminal() && o.State() != order.StateCaptured {
		return g.lifecycle.SettleReservation(ctx, o)
	}

	status, err := g.processor.ConfirmAuthorization(ctx, ev.AuthorizationID)
	if err != nil {
		return fmt.Errorf("verify processor event %s: %w", ev.ID, err)
	}

	g.logger.Info("processor event verified",
		zap.String("event_id", ev.ID),
		zap.String("type", string(ev.Type)),
		zap.String("order_id", o.ID().String()),
		zap.String("order_state", string(o.State())),
		zap.String("processor_status", string(status.Status)),
	)

	switch o.State() {
	case order.StatePending:
		_, err = g.settleAuthorization(ctx, o, ev.AuthorizationID, status)
		if errors.Is(err, ErrAuthorizationPending) {
			return nil
		}
	case order.StateAuthorized:
		if o.PaymentAuthorizationID() != ev.AuthorizationID {
			return nil
		}
		switch status.Status {
		case adapter.StatusCaptured:
			_, err = g.lifecycle.Capture(ctx, o.ID())
		case adapter.StatusDeclined, adapter.StatusExpired:
			_, err = g.lifecycle.Fail(ctx, o.ID(), declineReason(status.Status, status.DeclineReason))
		}
	case order.StateCaptured:
		// Replayed capture notification; lets the ledger catch up.
		_, err = g.lifecycle.Capture(ctx, o.ID())
	}

	var te *order.TransitionError
	if errors.As(err, &te) {
		return nil
	}
	return err
}

func (g *PaymentGateway) findEventOrder(ctx context.Context, ev adapter.ProcessorEvent) (*order.Order, error) {
	if ev.OrderID != "" {
		if id, err := uuid.Parse(ev.OrderID); err == nil {
			o, err := g.orders.FindByID(ctx, id)
			if err == nil || !domain.IsNotFound(err) {
				return o, err
			}
		}
	}
	return g.orders.FindByAuthorizationID(ctx, ev.AuthorizationID)
}

// mismatch explains why a verified authorization cannot pay for o, or returns "".
func mismatch(o *order.Order, status adapter.AuthorizationStatus) string {
	if status.Status == adapter.StatusDeclined || status.Status == adapter.StatusExpired {
		return ""
	}
	if status.OrderID != "" && status.OrderID != o.ID().String() {
		return "authorization belongs to a different order"
	}
	if status.AmountMinorUnits != o.TotalMinorUnits() {
		return fmt.Sprintf("authorized amount %d does not match order total %d", status.AmountMinorUnits, o.TotalMinorUnits())
	}
	if !strings.EqualFold(status.Currency, o.Currency()) {
		return fmt.Sprintf("authorized currency %s does not match order currency %s", status.Currency, o.Currency())
	}
	return ""
}

func declineReason(s adapter.Status, detail string) string {
	reason := "authorization " + string(s)
	if detail != "" {
		reason += ": " + detail
	}
	return reason
}
