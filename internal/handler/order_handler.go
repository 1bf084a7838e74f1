package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/storefront/service-checkout/internal/application"
	"github.com/storefront/service-checkout/pkg/auth"
	"github.com/storefront/service-checkout/pkg/middleware"
	"github.com/storefront/service-checkout/pkg/response"
)

// OrderHandler handles HTTP requests for buyer checkout operations.
type OrderHandler struct {
	service *application.CheckoutService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *application.CheckoutService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes registers all order routes on the given router group.
func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	orders := r.Group("/orders")
	orders.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleBuyer, auth.RoleAdmin))
	{
		orders.POST("", h.PlaceOrder)
		orders.GET("/:id", h.GetOrder)
		orders.POST("/:id/payment", h.BeginPayment)
		orders.POST("/:id/authorize", h.AuthorizeOrder)
		orders.POST("/:id/cancel", h.CancelOrder)
	}
}

// PlaceOrder handles POST /api/v1/orders
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req application.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.PlaceOrder(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// GetOrder handles GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	dto, err := h.service.GetOrder(c.Request.Context(), caller, orderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// BeginPayment handles POST /api/v1/orders/:id/payment
func (h *OrderHandler) BeginPayment(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	dto, err := h.service.BeginPayment(c.Request.Context(), caller, orderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// AuthorizeOrder handles POST /api/v1/orders/:id/authorize
func (h *OrderHandler) AuthorizeOrder(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req application.AuthorizeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.AuthorizeOrder(c.Request.Context(), caller, orderID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// CancelOrder handles POST /api/v1/orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	dto, err := h.service.CancelOrder(c.Request.Context(), caller, orderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

func callerFrom(c *gin.Context) (application.Caller, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return application.Caller{}, false
	}
	return application.Caller{ID: userID, Admin: middleware.IsAdmin(c)}, true
}

func orderIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid order ID")
		return uuid.Nil, false
	}
	return id, true
}
