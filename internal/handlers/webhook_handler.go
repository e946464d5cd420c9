package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/events"
)

// WebhookHandler receives vendor callbacks (delivery receipts and engagement
// events) and republishes them on the bus for the worker process. The vendor
// only needs a 2xx; the store update happens on the consumer side.
type WebhookHandler struct {
	bus events.Bus
	log *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(bus events.Bus, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{bus: bus, log: log}
}

// DeliveryReceipt handles POST /webhooks/delivery-receipt
func (h *WebhookHandler) DeliveryReceipt(c *gin.Context) {
	var receipt events.DeliveryReceipt
	if err := c.ShouldBindJSON(&receipt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if receipt.MessageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messageId is required"})
		return
	}

	if err := h.bus.Publish(c.Request.Context(), events.ChannelDeliveryReceipt, receipt); err != nil {
		h.log.Error("failed to publish delivery.receipt",
			zap.String("messageId", receipt.MessageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept receipt"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Receipt accepted"})
}

// EventCallback handles POST /webhooks/event-callback
func (h *WebhookHandler) EventCallback(c *gin.Context) {
	var callback events.EventCallback
	if err := c.ShouldBindJSON(&callback); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if callback.MessageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messageId is required"})
		return
	}

	if err := h.bus.Publish(c.Request.Context(), events.ChannelEventCallback, callback); err != nil {
		h.log.Error("failed to publish event.callback",
			zap.String("messageId", callback.MessageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept callback"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Callback accepted"})
}
