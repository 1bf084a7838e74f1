// Package catalog is the checkout service's read model of purchasable services.
// The catalog itself is owned by another system; only id, price and active
// flag matter here.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service is a fixed-price offering.
type Service struct {
	ID                  uuid.UUID
	Name                string
	UnitPriceMinorUnits int64
	Active              bool
	UpdatedAt           time.Time
}

// Validate checks a catalog entry before it is stored.
func (s Service) Validate() error {
	if s.ID == uuid.Nil {
		return fmt.Errorf("service id is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("service name is required")
	}
	if s.UnitPriceMinorUnits < 0 {
		return fmt.Errorf("unit price cannot be negative")
	}
	return nil
}

// Repository reads (and, for seeding, writes) catalog entries.
type Repository interface {
	// FindByIDs returns the services that exist among ids, in no particular order.
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Service, error)
	Upsert(ctx context.Context, s Service) error
}
