package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/storefront/service-checkout/internal/application"
	"github.com/storefront/service-checkout/pkg/response"
)

// PromotionHandler serves the public coupon and referral lookups.
type PromotionHandler struct {
	service *application.PromotionService
}

// NewPromotionHandler creates a new PromotionHandler.
func NewPromotionHandler(service *application.PromotionService) *PromotionHandler {
	return &PromotionHandler{service: service}
}

// RegisterRoutes registers the public lookup routes.
func (h *PromotionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/coupons/code/:code", h.PreviewCoupon)
	r.GET("/referral/validate/:code", h.ValidateReferral)
}

// PreviewCoupon handles GET /api/v1/coupons/code/:code
func (h *PromotionHandler) PreviewCoupon(c *gin.Context) {
	dto, err := h.service.PreviewCoupon(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// ValidateReferral handles GET /api/v1/referral/validate/:code
func (h *PromotionHandler) ValidateReferral(c *gin.Context) {
	dto, err := h.service.ValidateReferral(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}
