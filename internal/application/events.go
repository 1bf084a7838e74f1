package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/storefront/service-checkout/internal/contracts"
	"github.com/storefront/service-checkout/internal/domain/commission"
	"github.com/storefront/service-checkout/internal/domain/order"
	"github.com/storefront/service-checkout/pkg/kafka"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, string, kafka.CloudEvent) error { return nil }

// emitter publishes checkout events. Failures are logged and never returned:
// state changes are already committed when an event is emitted.
type emitter struct {
	publisher EventPublisher
	logger    *zap.Logger
}

func (e emitter) emit(ctx context.Context, eventType, subject string, data any) {
	ce, err := kafka.NewCloudEvent(contracts.Source, eventType, data)
	if err != nil {
		e.logger.Error("failed to create cloud event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := e.publisher.PublishEvent(ctx, contracts.TopicCheckoutEvents, ce.WithSubject(subject)); err != nil {
		e.logger.Error("failed to publish event",
			zap.String("type", eventType),
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

func (e emitter) orderCreated(ctx context.Context, o *order.Order) {
	d := o.Discount()
	e.emit(ctx, contracts.OrderCreated, o.ID().String(), contracts.OrderCreatedEvent{
		OrderID:                  o.ID(),
		BuyerRef:                 o.BuyerRef(),
		SubtotalMinorUnits:       o.Snapshot().SubtotalMinorUnits,
		DiscountKind:             string(d.Kind),
		DiscountAmountMinorUnits: d.AmountMinorUnits,
		DiscountSourceID:         d.SourceID,
		TotalMinorUnits:          o.TotalMinorUnits(),
		Currency:                 o.Currency(),
		OccurredAt:               time.Now().UTC(),
	})
}

var transitionEventTypes = map[order.State]string{
	order.StateAuthorized: contracts.OrderAuthorized,
	order.StateCaptured:   contracts.OrderCaptured,
	order.StateCancelled:  contracts.OrderCancelled,
	order.StateFailed:     contracts.OrderFailed,
}

func (e emitter) orderTransitioned(ctx context.Context, from order.State, o *order.Order) {
	eventType, ok := transitionEventTypes[o.State()]
	if !ok {
		return
	}
	e.emit(ctx, eventType, o.ID().String(), contracts.OrderStateChangedEvent{
		OrderID:                o.ID(),
		BuyerRef:               o.BuyerRef(),
		From:                   string(from),
		To:                     string(o.State()),
		PaymentAuthorizationID: o.PaymentAuthorizationID(),
		TotalMinorUnits:        o.TotalMinorUnits(),
		Currency:               o.Currency(),
		FailureReason:          o.FailureReason(),
		OccurredAt:             time.Now().UTC(),
	})
}

func (e emitter) commissionRecorded(ctx context.Context, c *commission.Commission) {
	e.emit(ctx, contracts.CommissionRecorded, c.OrderID.String(), contracts.CommissionRecordedEvent{
		CommissionID:     c.ID,
		OrderID:          c.OrderID,
		PromoterID:       c.PromoterID,
		ReferralCodeID:   c.ReferralCodeID,
		RateApplied:      c.RateApplied.String(),
		AmountMinorUnits: c.AmountMinorUnits,
		OccurredAt:       c.CreatedAt,
	})
}
