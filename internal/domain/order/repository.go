package order

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows admin listings.
type ListFilter struct {
	State    State
	BuyerRef string
}

// Repository defines the persistence contract for Order aggregates.
type Repository interface {
	// Save persists a new order.
	Save(ctx context.Context, o *Order) error

	// Update persists a transition. It succeeds only if the stored row is still
	// at o.Version()-1 and in expectedState; otherwise it returns a
	// domain.ErrConflict error and nothing is written.
	Update(ctx context.Context, o *Order, expectedState State) error

	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByAuthorizationID(ctx context.Context, authorizationID string) (*Order, error)
	List(ctx context.Context, filter ListFilter, page, limit int) ([]*Order, int64, error)

	// CountByState returns the number of orders in each state.
	CountByState(ctx context.Context) (map[State]int64, error)
}
