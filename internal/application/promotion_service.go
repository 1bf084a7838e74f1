package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/storefront/service-checkout/internal/domain/catalog"
	"github.com/storefront/service-checkout/internal/domain/coupon"
	"github.com/storefront/service-checkout/internal/domain/discount"
	"github.com/storefront/service-checkout/internal/domain/referral"
	"github.com/storefront/service-checkout/pkg/domain"
)

// PromotionService manages the catalog read model, coupons and referral codes.
// Nothing here reserves a coupon use; that only happens when an order is created.
type PromotionService struct {
	services  catalog.Repository
	coupons   coupon.Repository
	referrals referral.Repository
	now       func() time.Time
	logger    *zap.Logger
}

// NewPromotionService creates a new PromotionService.
func NewPromotionService(
	services catalog.Repository,
	coupons coupon.Repository,
	referrals referral.Repository,
	logger *zap.Logger,
) *PromotionService {
	return &PromotionService{
		services:  services,
		coupons:   coupons,
		referrals: referrals,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// UpsertService creates or updates a catalog entry (admin only).
func (s *PromotionService) UpsertService(ctx context.Context, req CreateServiceRequest) (*ServiceDTO, error) {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	svc := catalog.Service{
		ID:                  req.ID,
		Name:                req.Name,
		UnitPriceMinorUnits: req.UnitPriceMinorUnits,
		Active:              active,
	}
	if err := svc.Validate(); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if err := s.services.Upsert(ctx, svc); err != nil {
		return nil, err
	}

	s.logger.Info("catalog service upserted",
		zap.String("service_id", svc.ID.String()),
		zap.Int64("unit_price_minor_units", svc.UnitPriceMinorUnits),
		zap.Bool("active", svc.Active),
	)
	return &ServiceDTO{ID: svc.ID, Name: svc.Name, UnitPriceMinorUnits: svc.UnitPriceMinorUnits, Active: svc.Active}, nil
}

// CreateCoupon issues a new coupon (admin only).
func (s *PromotionService) CreateCoupon(ctx context.Context, req CreateCouponRequest) (*CouponDTO, error) {
	c, err := coupon.NewCoupon(coupon.NewCouponParams{
		Code:                     req.Code,
		Kind:                     coupon.Kind(req.Kind),
		Value:                    req.Value,
		MinOrderAmountMinorUnits: req.MinOrderAmountMinorUnits,
		MaxUses:                  req.MaxUses,
		ExpiresAt:                req.ExpiresAt,
	})
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if _, err := s.referrals.FindByCode(ctx, c.Code()); err == nil {
		return nil, domain.NewConflictError("code is already used by a referral code")
	}

	if err := s.coupons.Save(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("coupon created", zap.String("code", c.Code()), zap.String("kind", string(c.Kind())))
	dto := toCouponDTO(c, s.now())
	return &dto, nil
}

// PreviewCoupon shows a coupon's current terms without reserving anything.
// Inactive coupons are reported as not found, like at checkout.
func (s *PromotionService) PreviewCoupon(ctx context.Context, code string) (*CouponDTO, error) {
	c, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, discount.NewCodeNotFound(coupon.NormalizeCode(code))
		}
		return nil, err
	}
	if !c.Active() {
		return nil, discount.NewCodeNotFound(c.Code())
	}

	dto := toCouponDTO(c, s.now())
	return &dto, nil
}

// ListCoupons returns a page of coupons, newest first (admin only).
func (s *PromotionService) ListCoupons(ctx context.Context, page, limit int) ([]CouponDTO, int64, error) {
	coupons, total, err := s.coupons.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	dtos := make([]CouponDTO, len(coupons))
	for i, c := range coupons {
		dtos[i] = toCouponDTO(c, now)
	}
	return dtos, total, nil
}

// DeactivateCoupon stops a coupon from applying to new orders (admin only).
// Uses already reserved by open orders are left alone.
func (s *PromotionService) DeactivateCoupon(ctx context.Context, code string) (*CouponDTO, error) {
	c, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, discount.NewCodeNotFound(coupon.NormalizeCode(code))
		}
		return nil, err
	}
	if c.Active() {
		c.Deactivate()
		if err := s.coupons.Save(ctx, c); err != nil {
			return nil, err
		}
		s.logger.Info("coupon deactivated", zap.String("code", c.Code()))
	}

	dto := toCouponDTO(c, s.now())
	return &dto, nil
}

// CreateReferral issues a referral code for a promoter (admin only).
func (s *PromotionService) CreateReferral(ctx context.Context, req CreateReferralRequest) (*ReferralDTO, error) {
	rate, err := decimal.NewFromString(req.CommissionRate)
	if err != nil {
		return nil, domain.NewValidationError("commission rate must be a decimal number")
	}
	rc, err := referral.NewReferralCode(req.Code, req.OwnerPromoterID, rate)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if _, err := s.coupons.FindByCode(ctx, rc.Code()); err == nil {
		return nil, domain.NewConflictError("code is already used by a coupon")
	}

	if err := s.referrals.Save(ctx, rc); err != nil {
		return nil, err
	}

	s.logger.Info("referral code created",
		zap.String("code", rc.Code()),
		zap.String("promoter_id", rc.OwnerPromoterID()),
		zap.String("commission_rate", rc.CommissionRate().String()),
	)
	dto := toReferralDTO(rc)
	return &dto, nil
}

// ValidateReferral reports whether code is an active referral code.
func (s *PromotionService) ValidateReferral(ctx context.Context, code string) (*ReferralValidationDTO, error) {
	normalized := coupon.NormalizeCode(code)
	rc, err := s.referrals.FindByCode(ctx, normalized)
	if err != nil {
		if domain.IsNotFound(err) {
			return &ReferralValidationDTO{Code: normalized, Valid: false}, nil
		}
		return nil, err
	}
	return &ReferralValidationDTO{Code: rc.Code(), Valid: rc.Active()}, nil
}
