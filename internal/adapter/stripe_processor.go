package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"go.uber.org/zap"
)

// StripeProcessor implements PaymentProcessor on Stripe PaymentIntents with
// manual capture.
type StripeProcessor struct {
	api    *client.API
	logger *zap.Logger
}

// NewStripeProcessor creates a processor authenticated with secretKey.
func NewStripeProcessor(secretKey string, logger *zap.Logger) *StripeProcessor {
	return &StripeProcessor{api: client.New(secretKey, nil), logger: logger}
}

// CreateAuthorization creates an uncaptured PaymentIntent tagged with the order id.
func (s *StripeProcessor) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (AuthorizationHandle, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountMinorUnits),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey())
	params.AddMetadata("order_id", req.OrderID.String())

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return AuthorizationHandle{}, classifyStripeError("create", err)
	}

	s.logger.Info("stripe payment intent created",
		zap.String("payment_intent_id", pi.ID),
		zap.String("order_id", req.OrderID.String()),
		zap.Int64("amount_minor_units", req.AmountMinorUnits),
	)
	return AuthorizationHandle{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// ConfirmAuthorization fetches the PaymentIntent and normalizes its status.
func (s *StripeProcessor) ConfirmAuthorization(ctx context.Context, authorizationID string) (AuthorizationStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(authorizationID, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return AuthorizationStatus{ID: authorizationID, Status: StatusDeclined, DeclineReason: "no such payment intent"}, nil
		}
		return AuthorizationStatus{}, classifyStripeError("confirm", err)
	}
	return toAuthorizationStatus(pi), nil
}

// Capture captures the full authorized amount.
func (s *StripeProcessor) Capture(ctx context.Context, authorizationID, idempotencyKey string) (CaptureResult, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	pi, err := s.api.PaymentIntents.Capture(authorizationID, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && !isTransientStripeError(se) {
			return CaptureResult{Status: StatusDeclined, DeclineReason: se.Msg}, nil
		}
		return CaptureResult{}, classifyStripeError("capture", err)
	}

	st := toAuthorizationStatus(pi)
	s.logger.Info("stripe payment intent captured",
		zap.String("payment_intent_id", pi.ID),
		zap.String("status", string(st.Status)),
	)
	return CaptureResult{Status: st.Status, DeclineReason: st.DeclineReason}, nil
}

func toAuthorizationStatus(pi *stripe.PaymentIntent) AuthorizationStatus {
	st := AuthorizationStatus{
		ID:               pi.ID,
		OrderID:          pi.Metadata["order_id"],
		AmountMinorUnits: pi.Amount,
		Currency:         strings.ToLower(string(pi.Currency)),
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusRequiresCapture:
		st.Status = StatusAuthorized
	case stripe.PaymentIntentStatusSucceeded:
		st.Status = StatusCaptured
	case stripe.PaymentIntentStatusCanceled:
		st.Status = StatusExpired
		st.DeclineReason = string(pi.CancellationReason)
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			st.Status = StatusDeclined
			st.DeclineReason = pi.LastPaymentError.Msg
		} else {
			st.Status = StatusPending
		}
	default:
		st.Status = StatusPending
	}
	return st
}

func isTransientStripeError(se *stripe.Error) bool {
	return se.HTTPStatusCode >= http.StatusInternalServerError ||
		se.HTTPStatusCode == http.StatusTooManyRequests ||
		se.Type == stripe.ErrorTypeAPI
}

// classifyStripeError wraps network failures and retryable API errors in
// TransientError; everything else is returned as a permanent error.
func classifyStripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		if isTransientStripeError(se) {
			return &TransientError{Op: op, Err: err}
		}
		return fmt.Errorf("stripe %s: %w", op, err)
	}
	return &TransientError{Op: op, Err: err}
}
