package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PaymentProcessor is the anti-corruption layer between the checkout domain
// and the external payment processor.
type PaymentProcessor interface {
	// CreateAuthorization opens an authorize-only payment for an order.
	CreateAuthorization(ctx context.Context, req AuthorizationRequest) (AuthorizationHandle, error)

	// ConfirmAuthorization reads the processor's current view of an authorization.
	ConfirmAuthorization(ctx context.Context, authorizationID string) (AuthorizationStatus, error)

	// Capture settles a previously authorized payment. idempotencyKey must be
	// stable per order so a replayed capture cannot charge twice.
	Capture(ctx context.Context, authorizationID, idempotencyKey string) (CaptureResult, error)
}

// AuthorizationRequest asks the processor to hold AmountMinorUnits.
type AuthorizationRequest struct {
	OrderID          uuid.UUID
	AmountMinorUnits int64
	Currency         string
}

// IdempotencyKey is stable per order so retried creations return the same authorization.
func (r AuthorizationRequest) IdempotencyKey() string {
	return "auth-" + r.OrderID.String()
}

// CaptureIdempotencyKey is the key used for capturing an order's authorization.
func CaptureIdempotencyKey(orderID uuid.UUID) string {
	return "capture-" + orderID.String()
}

// AuthorizationHandle is what the buyer's client needs to complete the payment.
type AuthorizationHandle struct {
	ID           string `json:"authorization_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// Status is the processor's view of an authorization, normalized across providers.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAuthorized Status = "authorized"
	StatusCaptured   Status = "captured"
	StatusDeclined   Status = "declined"
	StatusExpired    Status = "expired"
)

// AuthorizationStatus is the verified state of an authorization.
type AuthorizationStatus struct {
	ID               string
	OrderID          string
	AmountMinorUnits int64
	Currency         string
	Status           Status
	DeclineReason    string
}

// CaptureResult is the outcome of a capture call that reached the processor.
type CaptureResult struct {
	Status        Status
	DeclineReason string
}

// TransientError marks a processor failure that may succeed on retry
// (timeouts, 5xx, rate limiting).
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("processor %s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
