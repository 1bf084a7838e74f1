package coupon

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for coupons.
type Repository interface {
	// Save inserts or updates a coupon's terms. It never writes current_uses,
	// which only moves through ReserveUse and ReleaseUse.
	Save(ctx context.Context, c *Coupon) error
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Coupon, error)

	List(ctx context.Context, page, limit int) ([]*Coupon, int64, error)

	// ReserveUse atomically increments current_uses for orderID if a use is
	// left and the coupon is active. Returns ErrNoUsesLeft otherwise. A second
	// reservation for the same order is a no-op.
	ReserveUse(ctx context.Context, couponID, orderID uuid.UUID) error

	// ReleaseUse gives back the use reserved for orderID. It is idempotent:
	// only the first release of a reservation decrements current_uses.
	ReleaseUse(ctx context.Context, couponID, orderID uuid.UUID) error
}
