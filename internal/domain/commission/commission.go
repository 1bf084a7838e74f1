// Package commission records what promoters earn on captured referred orders.
package commission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Commission is created once per captured referred order and never mutated.
type Commission struct {
	ID               uuid.UUID       `json:"id"`
	OrderID          uuid.UUID       `json:"order_id"`
	PromoterID       string          `json:"promoter_id"`
	ReferralCodeID   uuid.UUID       `json:"referral_code_id"`
	RateApplied      decimal.Decimal `json:"rate_applied"`
	AmountMinorUnits int64           `json:"amount_minor_units"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Repository persists commissions. OrderID is unique.
type Repository interface {
	// CreateIfAbsent inserts c unless a commission for c.OrderID exists, and
	// returns the stored row either way. created reports whether c was inserted.
	CreateIfAbsent(ctx context.Context, c *Commission) (stored *Commission, created bool, err error)

	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*Commission, error)
	ListByPromoter(ctx context.Context, promoterID string, page, limit int) ([]*Commission, int64, error)
	TotalByPromoter(ctx context.Context, promoterID string) (int64, error)
}
