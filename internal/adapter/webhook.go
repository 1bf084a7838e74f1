package adapter

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
)

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ProcessorEventType is a normalized processor callback kind.
type ProcessorEventType string

const (
	EventAuthorizationSucceeded ProcessorEventType = "authorization.succeeded"
	EventAuthorizationFailed    ProcessorEventType = "authorization.failed"
	EventAuthorizationCanceled  ProcessorEventType = "authorization.canceled"
	EventCaptureSucceeded       ProcessorEventType = "capture.succeeded"
)

// ProcessorEvent is a processor callback. It only says which authorization to
// look at; its status is always re-read from the processor.
type ProcessorEvent struct {
	ID              string             `json:"id"`
	Type            ProcessorEventType `json:"type"`
	AuthorizationID string             `json:"authorization_id"`
	OrderID         string             `json:"order_id,omitempty"`
}

// Validate checks the fields every handler relies on.
func (e ProcessorEvent) Validate() error {
	if e.AuthorizationID == "" {
		return fmt.Errorf("processor event %s has no authorization id", e.ID)
	}
	return nil
}

// WebhookVerifier authenticates and decodes a raw webhook delivery.
// A nil event with a nil error means the delivery is irrelevant.
type WebhookVerifier interface {
	ParseEvent(payload []byte, signatureHeader string) (*ProcessorEvent, error)
	SignatureHeader() string
}

// StripeWebhookVerifier checks the Stripe-Signature header.
type StripeWebhookVerifier struct {
	secret string
}

// NewStripeWebhookVerifier creates a verifier for the endpoint secret.
func NewStripeWebhookVerifier(secret string) *StripeWebhookVerifier {
	return &StripeWebhookVerifier{secret: secret}
}

// SignatureHeader names the header Stripe signs deliveries with.
func (v *StripeWebhookVerifier) SignatureHeader() string { return "Stripe-Signature" }

// ParseEvent verifies the signature and maps PaymentIntent events.
func (v *StripeWebhookVerifier) ParseEvent(payload []byte, signatureHeader string) (*ProcessorEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var kind ProcessorEventType
	switch event.Type {
	case "payment_intent.amount_capturable_updated":
		kind = EventAuthorizationSucceeded
	case "payment_intent.payment_failed":
		kind = EventAuthorizationFailed
	case "payment_intent.canceled":
		kind = EventAuthorizationCanceled
	case "payment_intent.succeeded":
		kind = EventCaptureSucceeded
	default:
		return nil, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("failed to decode payment intent: %w", err)
	}
	return &ProcessorEvent{
		ID:              event.ID,
		Type:            kind,
		AuthorizationID: pi.ID,
		OrderID:         pi.Metadata["order_id"],
	}, nil
}

// MockWebhookVerifier accepts ProcessorEvent JSON as-is. Safe only because
// event contents are re-verified against the processor.
type MockWebhookVerifier struct{}

// SignatureHeader is unused by the mock.
func (MockWebhookVerifier) SignatureHeader() string { return "X-Mock-Signature" }

// ParseEvent decodes a ProcessorEvent.
func (MockWebhookVerifier) ParseEvent(payload []byte, _ string) (*ProcessorEvent, error) {
	var ev ProcessorEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode processor event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}
