package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/storefront/service-checkout/internal/domain/commission"
	"github.com/storefront/service-checkout/internal/domain/coupon"
	"github.com/storefront/service-checkout/internal/domain/order"
	"github.com/storefront/service-checkout/internal/domain/pricing"
	"github.com/storefront/service-checkout/internal/domain/referral"
)

// Caller is the authenticated principal of a request.
type Caller struct {
	ID    string
	Admin bool
}

// PlaceOrderRequest is the DTO for checking out a cart.
type PlaceOrderRequest struct {
	Items []pricing.CartItem `json:"items"`
	Code  string             `json:"code"`
}

// AuthorizeOrderRequest carries the authorization the buyer completed.
type AuthorizeOrderRequest struct {
	AuthorizationID string `json:"authorization_id" binding:"required"`
}

// DiscountDTO describes the discount frozen into an order.
type DiscountDTO struct {
	Kind             string     `json:"kind"`
	AmountMinorUnits int64      `json:"amount_minor_units"`
	SourceID         *uuid.UUID `json:"source_id,omitempty"`
	Code             string     `json:"code,omitempty"`
}

// OrderDTO is the API response DTO for order data.
type OrderDTO struct {
	ID                     uuid.UUID          `json:"id"`
	BuyerRef               string             `json:"buyer_ref"`
	State                  string             `json:"state"`
	LineItems              []pricing.LineItem `json:"line_items"`
	SubtotalMinorUnits     int64              `json:"subtotal_minor_units"`
	Discount               DiscountDTO        `json:"discount"`
	TotalMinorUnits        int64              `json:"total_minor_units"`
	Currency               string             `json:"currency"`
	PaymentAuthorizationID string             `json:"payment_authorization_id,omitempty"`
	FailureReason          string             `json:"failure_reason,omitempty"`
	Version                int64              `json:"version"`
	PricedAt               time.Time          `json:"priced_at"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// PaymentSessionDTO is returned when a buyer starts paying for an order.
type PaymentSessionDTO struct {
	OrderID          uuid.UUID `json:"order_id"`
	AuthorizationID  string    `json:"authorization_id"`
	ClientSecret     string    `json:"client_secret,omitempty"`
	AmountMinorUnits int64     `json:"amount_minor_units"`
	Currency         string    `json:"currency"`
}

// CreateServiceRequest upserts a catalog entry (admin).
type CreateServiceRequest struct {
	ID                  uuid.UUID `json:"id" binding:"required"`
	Name                string    `json:"name" binding:"required"`
	UnitPriceMinorUnits int64     `json:"unit_price_minor_units" binding:"gte=0"`
	Active              *bool     `json:"active"`
}

// ServiceDTO is a catalog entry.
type ServiceDTO struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	UnitPriceMinorUnits int64     `json:"unit_price_minor_units"`
	Active              bool      `json:"active"`
}

// CreateCouponRequest is the DTO for issuing a coupon (admin).
type CreateCouponRequest struct {
	Code                     string     `json:"code" binding:"required"`
	Kind                     string     `json:"kind" binding:"required,oneof=PERCENTAGE FIXED"`
	Value                    int64      `json:"value" binding:"gte=0"`
	MinOrderAmountMinorUnits *int64     `json:"min_order_amount_minor_units"`
	MaxUses                  *int       `json:"max_uses"`
	ExpiresAt                *time.Time `json:"expires_at"`
}

// CouponDTO shows a coupon's terms.
type CouponDTO struct {
	ID                       uuid.UUID  `json:"id"`
	Code                     string     `json:"code"`
	Kind                     string     `json:"kind"`
	Value                    int64      `json:"value"`
	MinOrderAmountMinorUnits *int64     `json:"min_order_amount_minor_units,omitempty"`
	MaxUses                  *int       `json:"max_uses,omitempty"`
	RemainingUses            *int       `json:"remaining_uses,omitempty"`
	ExpiresAt                *time.Time `json:"expires_at,omitempty"`
	Active                   bool       `json:"active"`
	Expired                  bool       `json:"expired"`
}

// CreateReferralRequest is the DTO for issuing a referral code (admin).
// CommissionRate is a decimal string such as "0.05".
type CreateReferralRequest struct {
	Code            string `json:"code" binding:"required"`
	OwnerPromoterID string `json:"owner_promoter_id" binding:"required"`
	CommissionRate  string `json:"commission_rate" binding:"required"`
}

// ReferralDTO is the admin view of a referral code.
type ReferralDTO struct {
	ID              uuid.UUID `json:"id"`
	Code            string    `json:"code"`
	OwnerPromoterID string    `json:"owner_promoter_id"`
	CommissionRate  string    `json:"commission_rate"`
	Active          bool      `json:"active"`
}

// ReferralValidationDTO is the public answer to "is this referral code usable".
type ReferralValidationDTO struct {
	Code  string `json:"code"`
	Valid bool   `json:"valid"`
}

// CommissionDTO is a ledger entry.
type CommissionDTO struct {
	ID               uuid.UUID `json:"id"`
	OrderID          uuid.UUID `json:"order_id"`
	PromoterID       string    `json:"promoter_id"`
	ReferralCodeID   uuid.UUID `json:"referral_code_id"`
	RateApplied      string    `json:"rate_applied"`
	AmountMinorUnits int64     `json:"amount_minor_units"`
	CreatedAt        time.Time `json:"created_at"`
}

func toOrderDTO(o *order.Order) OrderDTO {
	snap := o.Snapshot()
	d := o.Discount()
	return OrderDTO{
		ID:                 o.ID(),
		BuyerRef:           o.BuyerRef(),
		State:              string(o.State()),
		LineItems:          snap.LineItems,
		SubtotalMinorUnits: snap.SubtotalMinorUnits,
		Discount: DiscountDTO{
			Kind:             string(d.Kind),
			AmountMinorUnits: d.AmountMinorUnits,
			SourceID:         d.SourceID,
			Code:             d.Code,
		},
		TotalMinorUnits:        o.TotalMinorUnits(),
		Currency:               o.Currency(),
		PaymentAuthorizationID: o.PaymentAuthorizationID(),
		FailureReason:          o.FailureReason(),
		Version:                o.Version(),
		PricedAt:               snap.TakenAt,
		CreatedAt:              o.CreatedAt(),
		UpdatedAt:              o.UpdatedAt(),
	}
}

func toCouponDTO(c *coupon.Coupon, now time.Time) CouponDTO {
	return CouponDTO{
		ID:                       c.ID(),
		Code:                     c.Code(),
		Kind:                     string(c.Kind()),
		Value:                    c.Value(),
		MinOrderAmountMinorUnits: c.MinOrderAmountMinorUnits(),
		MaxUses:                  c.MaxUses(),
		RemainingUses:            c.RemainingUses(),
		ExpiresAt:                c.ExpiresAt(),
		Active:                   c.Active(),
		Expired:                  c.IsExpired(now),
	}
}

func toReferralDTO(r *referral.ReferralCode) ReferralDTO {
	return ReferralDTO{
		ID:              r.ID(),
		Code:            r.Code(),
		OwnerPromoterID: r.OwnerPromoterID(),
		CommissionRate:  r.CommissionRate().String(),
		Active:          r.Active(),
	}
}

func toCommissionDTO(c *commission.Commission) CommissionDTO {
	return CommissionDTO{
		ID:               c.ID,
		OrderID:          c.OrderID,
		PromoterID:       c.PromoterID,
		ReferralCodeID:   c.ReferralCodeID,
		RateApplied:      c.RateApplied.String(),
		AmountMinorUnits: c.AmountMinorUnits,
		CreatedAt:        c.CreatedAt,
	}
}
