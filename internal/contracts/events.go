// Package contracts defines the Kafka topics and CloudEvent payloads the
// checkout service produces and consumes.
package contracts

import (
	"time"

	"github.com/google/uuid"
)

const (
	// Source is the CloudEvents source of every event this service emits.
	Source = "service-checkout"

	TopicCheckoutEvents         = "checkout.events"
	TopicPaymentProcessorEvents = "payment.processor.events"
)

// Produced event types.
const (
	OrderCreated       = "checkout.order.created"
	OrderAuthorized    = "checkout.order.authorized"
	OrderCaptured      = "checkout.order.captured"
	OrderCancelled     = "checkout.order.cancelled"
	OrderFailed        = "checkout.order.failed"
	CommissionRecorded = "checkout.commission.recorded"
)

// Consumed event type. Its data is an adapter.ProcessorEvent.
const ProcessorCallback = "payment.processor.callback"

// OrderCreatedEvent is published after an order is persisted as PENDING.
type OrderCreatedEvent struct {
	OrderID                  uuid.UUID  `json:"order_id"`
	BuyerRef                 string     `json:"buyer_ref"`
	SubtotalMinorUnits       int64      `json:"subtotal_minor_units"`
	DiscountKind             string     `json:"discount_kind"`
	DiscountAmountMinorUnits int64      `json:"discount_amount_minor_units"`
	DiscountSourceID         *uuid.UUID `json:"discount_source_id,omitempty"`
	TotalMinorUnits          int64      `json:"total_minor_units"`
	Currency                 string     `json:"currency"`
	OccurredAt               time.Time  `json:"occurred_at"`
}

// OrderStateChangedEvent is published for every lifecycle transition after creation.
type OrderStateChangedEvent struct {
	OrderID                uuid.UUID `json:"order_id"`
	BuyerRef               string    `json:"buyer_ref"`
	From                   string    `json:"from"`
	To                     string    `json:"to"`
	PaymentAuthorizationID string    `json:"payment_authorization_id,omitempty"`
	TotalMinorUnits        int64     `json:"total_minor_units"`
	Currency               string    `json:"currency"`
	FailureReason          string    `json:"failure_reason,omitempty"`
	OccurredAt             time.Time `json:"occurred_at"`
}

// CommissionRecordedEvent is published once per captured referred order.
type CommissionRecordedEvent struct {
	CommissionID     uuid.UUID `json:"commission_id"`
	OrderID          uuid.UUID `json:"order_id"`
	PromoterID       string    `json:"promoter_id"`
	ReferralCodeID   uuid.UUID `json:"referral_code_id"`
	RateApplied      string    `json:"rate_applied"`
	AmountMinorUnits int64     `json:"amount_minor_units"`
	OccurredAt       time.Time `json:"occurred_at"`
}
