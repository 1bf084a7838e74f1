package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/service-checkout/internal/domain/commission"
	"github.com/storefront/service-checkout/internal/domain/discount"
	"github.com/storefront/service-checkout/internal/domain/order"
	"github.com/storefront/service-checkout/internal/domain/referral"
	"github.com/storefront/service-checkout/internal/metrics"
)

// CommissionLedger records at most one commission per captured referred order.
type CommissionLedger struct {
	commissions commission.Repository
	referrals   referral.Repository
	events      emitter
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewCommissionLedger creates a new CommissionLedger.
func NewCommissionLedger(
	commissions commission.Repository,
	referrals referral.Repository,
	publisher EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *CommissionLedger {
	return &CommissionLedger{
		commissions: commissions,
		referrals:   referrals,
		events:      emitter{publisher: publisher, logger: logger},
		metrics:     m,
		logger:      logger,
	}
}

// RecordIfAbsent writes the commission for a captured referred order unless
// one exists. Orders without a referral discount return (nil, false, nil).
// The rate is read at capture time.
func (l *CommissionLedger) RecordIfAbsent(ctx context.Context, o *order.Order) (*commission.Commission, bool, error) {
	d := o.Discount()
	if d.Kind != discount.KindReferral || d.SourceID == nil {
		return nil, false, nil
	}
	if o.State() != order.StateCaptured {
		return nil, false, fmt.Errorf("commission requested for order %s in state %s", o.ID(), o.State())
	}

	ref, err := l.referrals.FindByID(ctx, *d.SourceID)
	if err != nil {
		return nil, false, fmt.Errorf("load referral code %s: %w", d.SourceID, err)
	}

	candidate := &commission.Commission{
		ID:               uuid.New(),
		OrderID:          o.ID(),
		PromoterID:       ref.OwnerPromoterID(),
		ReferralCodeID:   ref.ID(),
		RateApplied:      ref.CommissionRate(),
		AmountMinorUnits: ref.CommissionFor(o.TotalMinorUnits()),
		CreatedAt:        time.Now().UTC(),
	}

	stored, created, err := l.commissions.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, false, fmt.Errorf("record commission for order %s: %w", o.ID(), err)
	}

	if created {
		l.metrics.CommissionsTotal.Inc()
		l.logger.Info("commission recorded",
			zap.String("order_id", o.ID().String()),
			zap.String("promoter_id", stored.PromoterID),
			zap.Int64("amount_minor_units", stored.AmountMinorUnits),
		)
		l.events.commissionRecorded(ctx, stored)
	}
	return stored, created, nil
}

// PromoterEarnings is a page of commissions plus the promoter's lifetime total.
type PromoterEarnings struct {
	PromoterID            string          `json:"promoter_id"`
	TotalEarnedMinorUnits int64           `json:"total_earned_minor_units"`
	Commissions           []CommissionDTO `json:"commissions"`
}

// Earnings lists a promoter's commissions (admin).
func (l *CommissionLedger) Earnings(ctx context.Context, promoterID string, page, limit int) (*PromoterEarnings, int64, error) {
	list, count, err := l.commissions.ListByPromoter(ctx, promoterID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := l.commissions.TotalByPromoter(ctx, promoterID)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]CommissionDTO, len(list))
	for i, c := range list {
		dtos[i] = toCommissionDTO(c)
	}
	return &PromoterEarnings{PromoterID: promoterID, TotalEarnedMinorUnits: total, Commissions: dtos}, count, nil
}
