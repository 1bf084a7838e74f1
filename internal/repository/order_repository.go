package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront/service-checkout/internal/domain/discount"
	orderDomain "github.com/storefront/service-checkout/internal/domain/order"
	"github.com/storefront/service-checkout/internal/domain/pricing"
	"github.com/storefront/service-checkout/pkg/domain"
)

// OrderModel is the GORM persistence model for the orders table.
type OrderModel struct {
	ID                       uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BuyerRef                 string     `gorm:"type:varchar(128);not null;index"`
	LineItems                []byte     `gorm:"type:jsonb;not null"`
	SubtotalMinorUnits       int64      `gorm:"not null"`
	SnapshotTakenAt          time.Time  `gorm:"type:timestamptz;not null"`
	DiscountKind             string     `gorm:"type:varchar(16);not null;default:'NONE'"`
	DiscountAmountMinorUnits int64      `gorm:"not null;default:0"`
	DiscountSourceID         *uuid.UUID `gorm:"type:uuid"`
	DiscountCode             *string    `gorm:"type:varchar(64)"`
	TotalMinorUnits          int64      `gorm:"not null"`
	Currency                 string     `gorm:"type:varchar(3);not null"`
	State                    string     `gorm:"type:varchar(16);not null;index"`
	PaymentAuthorizationID   *string    `gorm:"type:varchar(255);uniqueIndex"`
	FailureReason            *string    `gorm:"type:text"`
	Version                  int64      `gorm:"not null;default:1"`
	CreatedAt                time.Time  `gorm:"type:timestamptz;not null"`
	UpdatedAt                time.Time  `gorm:"type:timestamptz;not null"`
}

// TableName specifies the table name for GORM.
func (OrderModel) TableName() string {
	return "orders"
}

// OrderRepositoryImpl is the GORM-based implementation of order.Repository.
type OrderRepositoryImpl struct {
	db *gorm.DB
}

// NewOrderRepository creates a new GORM-based order repository.
func NewOrderRepository(db *gorm.DB) *OrderRepositoryImpl {
	return &OrderRepositoryImpl{db: db}
}

// FindByID retrieves an order by its unique ID.
func (r *OrderRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*orderDomain.Order, error) {
	var model OrderModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Order", id.String())
		}
		return nil, err
	}
	return toOrderDomain(&model)
}

// FindByAuthorizationID retrieves the order an authorization was created for.
func (r *OrderRepositoryImpl) FindByAuthorizationID(ctx context.Context, authorizationID string) (*orderDomain.Order, error) {
	var model OrderModel
	if err := r.db.WithContext(ctx).Where("payment_authorization_id = ?", authorizationID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Order", authorizationID)
		}
		return nil, err
	}
	return toOrderDomain(&model)
}

// Save persists a new order aggregate.
func (r *OrderRepositoryImpl) Save(ctx context.Context, o *orderDomain.Order) error {
	model, err := toOrderModel(o)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists a transition with optimistic locking on version and state.
// Only the mutable columns are written.
func (r *OrderRepositoryImpl) Update(ctx context.Context, o *orderDomain.Order, expectedState orderDomain.State) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND version = ? AND state = ?", o.ID(), o.Version()-1, string(expectedState)).
		Updates(map[string]any{
			"state":                    string(o.State()),
			"payment_authorization_id": nullable(o.PaymentAuthorizationID()),
			"failure_reason":           nullable(o.FailureReason()),
			"version":                  o.Version(),
			"updated_at":               o.UpdatedAt(),
		})

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return orderDomain.ErrAuthorizationInUse
		}
		return result.Error
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("order was modified by another transaction")
	}

	return nil
}

// List retrieves orders newest first with pagination.
func (r *OrderRepositoryImpl) List(ctx context.Context, filter orderDomain.ListFilter, page, limit int) ([]*orderDomain.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&OrderModel{})
	if filter.State != "" {
		query = query.Where("state = ?", string(filter.State))
	}
	if filter.BuyerRef != "" {
		query = query.Where("buyer_ref = ?", filter.BuyerRef)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []OrderModel
	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	orders := make([]*orderDomain.Order, len(models))
	for i := range models {
		o, err := toOrderDomain(&models[i])
		if err != nil {
			return nil, 0, err
		}
		orders[i] = o
	}
	return orders, total, nil
}

// CountByState returns the number of orders in each state.
func (r *OrderRepositoryImpl) CountByState(ctx context.Context) (map[orderDomain.State]int64, error) {
	type stateCount struct {
		State string
		Count int64
	}
	var results []stateCount
	if err := r.db.WithContext(ctx).Model(&OrderModel{}).
		Select("state, count(*) as count").
		Group("state").
		Find(&results).Error; err != nil {
		return nil, err
	}

	counts := make(map[orderDomain.State]int64, len(results))
	for _, sc := range results {
		counts[orderDomain.State(sc.State)] = sc.Count
	}
	return counts, nil
}

// toOrderDomain maps an OrderModel to the domain Order aggregate.
func toOrderDomain(model *OrderModel) (*orderDomain.Order, error) {
	var lines []pricing.LineItem
	if err := json.Unmarshal(model.LineItems, &lines); err != nil {
		return nil, fmt.Errorf("decode line items of order %s: %w", model.ID, err)
	}

	return orderDomain.Reconstitute(
		model.ID,
		model.BuyerRef,
		pricing.Snapshot{
			LineItems:          lines,
			SubtotalMinorUnits: model.SubtotalMinorUnits,
			TakenAt:            model.SnapshotTakenAt,
		},
		discount.Result{
			Kind:             discount.Kind(model.DiscountKind),
			AmountMinorUnits: model.DiscountAmountMinorUnits,
			SourceID:         model.DiscountSourceID,
			Code:             deref(model.DiscountCode),
		},
		model.TotalMinorUnits,
		model.Currency,
		orderDomain.State(model.State),
		deref(model.PaymentAuthorizationID),
		deref(model.FailureReason),
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	), nil
}

// toOrderModel maps a domain Order aggregate to an OrderModel for persistence.
func toOrderModel(o *orderDomain.Order) (*OrderModel, error) {
	snap := o.Snapshot()
	lines, err := json.Marshal(snap.LineItems)
	if err != nil {
		return nil, fmt.Errorf("encode line items of order %s: %w", o.ID(), err)
	}
	d := o.Discount()

	return &OrderModel{
		ID:                       o.ID(),
		BuyerRef:                 o.BuyerRef(),
		LineItems:                lines,
		SubtotalMinorUnits:       snap.SubtotalMinorUnits,
		SnapshotTakenAt:          snap.TakenAt,
		DiscountKind:             string(d.Kind),
		DiscountAmountMinorUnits: d.AmountMinorUnits,
		DiscountSourceID:         d.SourceID,
		DiscountCode:             nullable(d.Code),
		TotalMinorUnits:          o.TotalMinorUnits(),
		Currency:                 o.Currency(),
		State:                    string(o.State()),
		PaymentAuthorizationID:   nullable(o.PaymentAuthorizationID()),
		FailureReason:            nullable(o.FailureReason()),
		Version:                  o.Version(),
		CreatedAt:                o.CreatedAt(),
		UpdatedAt:                o.UpdatedAt(),
	}, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
