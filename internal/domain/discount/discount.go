// Package discount resolves a buyer supplied code into exactly one discount
// source: a coupon, a referral code, or nothing.
package discount

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/service-checkout/pkg/domain"
)

// Kind tags the provenance of a discount.
type Kind string

const (
	KindNone     Kind = "NONE"
	KindCoupon   Kind = "COUPON"
	KindReferral Kind = "REFERRAL"
)

// Result is the resolved discount. It is frozen into the order unchanged.
type Result struct {
	Kind             Kind       `json:"kind"`
	AmountMinorUnits int64      `json:"amount_minor_units"`
	SourceID         *uuid.UUID `json:"source_id,omitempty"`
	Code             string     `json:"code,omitempty"`
}

// None is the result for a checkout without a code.
func None() Result { return Result{Kind: KindNone} }

// Reason classifies a resolution failure.
type Reason string

const (
	ReasonCodeNotFound       Reason = "CODE_NOT_FOUND"
	ReasonCodeExpired        Reason = "CODE_EXPIRED"
	ReasonCodeExhausted      Reason = "CODE_EXHAUSTED"
	ReasonMinimumOrderNotMet Reason = "MINIMUM_ORDER_NOT_MET"
)

// Error is an input error: it is shown to the buyer verbatim and never retried.
type Error struct {
	Reason  Reason
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string { return e.Message }

// Is makes every discount error match domain.ErrValidation.
func (e *Error) Is(target error) bool { return target == domain.ErrValidation }

func (e *Error) ErrorCode() string { return string(e.Reason) }

func (e *Error) ErrorDetails() map[string]any { return e.Details }

// NewCodeNotFound reports a code that is neither an active coupon nor an active referral.
func NewCodeNotFound(code string) *Error {
	return &Error{
		Reason:  ReasonCodeNotFound,
		Code:    code,
		Message: fmt.Sprintf("code %q does not exist", code),
		Details: map[string]any{"code": code},
	}
}

// NewCodeExpired reports a coupon past its expiry.
func NewCodeExpired(code string, expiredAt time.Time) *Error {
	return &Error{
		Reason:  ReasonCodeExpired,
		Code:    code,
		Message: fmt.Sprintf("code %q expired on %s", code, expiredAt.UTC().Format(time.RFC3339)),
		Details: map[string]any{"code": code, "expired_at": expiredAt.UTC()},
	}
}

// NewCodeExhausted reports a coupon whose uses are all taken.
func NewCodeExhausted(code string, maxUses *int) *Error {
	details := map[string]any{"code": code}
	if maxUses != nil {
		details["max_uses"] = *maxUses
	}
	return &Error{
		Reason:  ReasonCodeExhausted,
		Code:    code,
		Message: fmt.Sprintf("code %q has reached its usage limit", code),
		Details: details,
	}
}

// NewMinimumOrderNotMet reports a subtotal below the coupon minimum.
func NewMinimumOrderNotMet(code string, minimum, subtotal int64) *Error {
	return &Error{
		Reason:  ReasonMinimumOrderNotMet,
		Code:    code,
		Message: fmt.Sprintf("code %q requires a minimum order of %d, cart subtotal is %d", code, minimum, subtotal),
		Details: map[string]any{
			"code":                         code,
			"min_order_amount_minor_units": minimum,
			"subtotal_minor_units":         subtotal,
		},
	}
}
