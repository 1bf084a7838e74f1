package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storefront/service-checkout/internal/adapter"
	"github.com/storefront/service-checkout/internal/events"
	"github.com/storefront/service-checkout/pkg/response"
)

// maxWebhookBytes matches the payload limit Stripe documents for webhook deliveries.
const maxWebhookBytes = 65536

// WebhookHandler receives payment processor callbacks.
type WebhookHandler struct {
	verifier adapter.WebhookVerifier
	handler  events.ProcessorEventHandler
	logger   *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(verifier adapter.WebhookVerifier, handler events.ProcessorEventHandler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, handler: handler, logger: logger}
}

// RegisterRoutes registers the webhook route. It is authenticated by signature, not JWT.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/processor", h.Receive)
}

// Receive handles POST /api/v1/webhooks/processor
func (h *WebhookHandler) Receive(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		response.BadRequest(c, "failed to read webhook body")
		return
	}

	ev, err := h.verifier.ParseEvent(payload, c.GetHeader(h.verifier.SignatureHeader()))
	if err != nil {
		h.logger.Warn("processor webhook rejected", zap.Error(err))
		if errors.Is(err, adapter.ErrInvalidSignature) {
			response.Unauthorized(c, "invalid webhook signature")
			return
		}
		response.BadRequest(c, "invalid webhook payload")
		return
	}
	if ev == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.handler.HandleProcessorEvent(c.Request.Context(), *ev); err != nil {
		h.logger.Error("failed to handle processor webhook",
			zap.String("event_id", ev.ID),
			zap.String("authorization_id", ev.AuthorizationID),
			zap.Error(err),
		)
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
