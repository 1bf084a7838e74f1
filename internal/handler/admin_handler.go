package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/storefront/service-checkout/internal/application"
	"github.com/storefront/service-checkout/internal/domain/order"
	"github.com/storefront/service-checkout/pkg/auth"
	"github.com/storefront/service-checkout/pkg/middleware"
	"github.com/storefront/service-checkout/pkg/response"
)

// AdminHandler handles admin HTTP requests for catalog, promotions and orders.
type AdminHandler struct {
	checkout   *application.CheckoutService
	promotions *application.PromotionService
	ledger     *application.CommissionLedger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	checkout *application.CheckoutService,
	promotions *application.PromotionService,
	ledger *application.CommissionLedger,
) *AdminHandler {
	return &AdminHandler{checkout: checkout, promotions: promotions, ledger: ledger}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/services", h.UpsertService)
		admin.POST("/coupons", h.CreateCoupon)
		admin.GET("/coupons", h.ListCoupons)
		admin.POST("/coupons/:code/deactivate", h.DeactivateCoupon)
		admin.POST("/referrals", h.CreateReferral)
		admin.GET("/orders", h.ListOrders)
		admin.GET("/orders/stats", h.OrderStats)
		admin.POST("/orders/:id/capture", h.CaptureOrder)
		admin.GET("/promoters/:id/commissions", h.PromoterCommissions)
	}
}

// UpsertService handles POST /api/v1/admin/services.
func (h *AdminHandler) UpsertService(c *gin.Context) {
	var req application.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.promotions.UpsertService(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// CreateCoupon handles POST /api/v1/admin/coupons.
func (h *AdminHandler) CreateCoupon(c *gin.Context) {
	var req application.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.promotions.CreateCoupon(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto)
}

// ListCoupons handles GET /api/v1/admin/coupons.
func (h *AdminHandler) ListCoupons(c *gin.Context) {
	page, limit := pagination(c)

	coupons, total, err := h.promotions.ListCoupons(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, coupons, total, page, limit)
}

// DeactivateCoupon handles POST /api/v1/admin/coupons/:code/deactivate.
func (h *AdminHandler) DeactivateCoupon(c *gin.Context) {
	dto, err := h.promotions.DeactivateCoupon(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// CreateReferral handles POST /api/v1/admin/referrals.
func (h *AdminHandler) CreateReferral(c *gin.Context) {
	var req application.CreateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.promotions.CreateReferral(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto)
}

// ListOrders handles GET /api/v1/admin/orders.
func (h *AdminHandler) ListOrders(c *gin.Context) {
	page, limit := pagination(c)
	filter := order.ListFilter{
		State:    order.State(c.Query("state")),
		BuyerRef: c.Query("buyer"),
	}

	orders, total, err := h.checkout.ListOrders(c.Request.Context(), filter, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, orders, total, page, limit)
}

// OrderStats handles GET /api/v1/admin/orders/stats.
func (h *AdminHandler) OrderStats(c *gin.Context) {
	stats, err := h.checkout.OrderStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// CaptureOrder handles POST /api/v1/admin/orders/:id/capture.
func (h *AdminHandler) CaptureOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	dto, err := h.checkout.CaptureOrder(c.Request.Context(), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// PromoterCommissions handles GET /api/v1/admin/promoters/:id/commissions.
func (h *AdminHandler) PromoterCommissions(c *gin.Context) {
	page, limit := pagination(c)

	earnings, total, err := h.ledger.Earnings(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, earnings, total, page, limit)
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
