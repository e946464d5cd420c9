package events

import (
	"context"
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/services"
)

// Consumers binds the worker-side event handlers to the bus. Handler errors
// are logged and swallowed; the bus does not redeliver.
type Consumers struct {
	bus       Bus
	campaigns *services.CampaignService
	segments  *services.SegmentService
	log       *zap.Logger
}

// NewConsumers creates a new Consumers
func NewConsumers(bus Bus, campaigns *services.CampaignService, segments *services.SegmentService, log *zap.Logger) *Consumers {
	return &Consumers{
		bus:       bus,
		campaigns: campaigns,
		segments:  segments,
		log:       log,
	}
}

// Start subscribes every consumer channel. Subscriptions live until the
// context is cancelled.
func (c *Consumers) Start(ctx context.Context) error {
	subscriptions := map[string]Handler{
		ChannelCampaignCreated:    c.onCampaignCreated,
		ChannelCustomerCreated:    c.onCustomerChanged,
		ChannelCustomerUpdated:    c.onCustomerChanged,
		ChannelCustomerDeleted:    c.onCustomerChanged,
		ChannelCustomerBulkCreate: c.onCustomerChanged,
		ChannelDeliveryReceipt:    c.onDeliveryReceipt,
		ChannelEventCallback:      c.onEventCallback,
	}
	for channel, handler := range subscriptions {
		if err := c.bus.Subscribe(ctx, channel, handler); err != nil {
			return err
		}
	}
	return nil
}

func (c *Consumers) onCampaignCreated(ctx context.Context, envelope Envelope) {
	var event CampaignCreated
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		c.log.Error("invalid campaign.created payload", zap.Error(err))
		return
	}
	id, err := primitive.ObjectIDFromHex(event.CampaignID)
	if err != nil {
		c.log.Error("invalid campaign id in event",
			zap.String("campaignId", event.CampaignID), zap.Error(err))
		return
	}
	if err := c.campaigns.HandleCampaignCreated(ctx, id); err != nil {
		c.log.Error("campaign activation failed",
			zap.String("campaignId", event.CampaignID), zap.Error(err))
	}
}

// onCustomerChanged refreshes cached segment audience sizes after any
// customer mutation. Refresh is a full recount, so the payload's customer
// ids only matter for logging.
func (c *Consumers) onCustomerChanged(ctx context.Context, envelope Envelope) {
	var event CustomerChanged
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		c.log.Error("invalid customer event payload",
			zap.String("channel", envelope.Channel), zap.Error(err))
		return
	}
	c.log.Debug("refreshing segments after customer change",
		zap.String("channel", envelope.Channel),
		zap.Int("customers", len(event.CustomerIDs)))
	c.segments.RefreshAllSegments(ctx)
}

func (c *Consumers) onDeliveryReceipt(ctx context.Context, envelope Envelope) {
	var receipt DeliveryReceipt
	if err := json.Unmarshal(envelope.Payload, &receipt); err != nil {
		c.log.Error("invalid delivery.receipt payload", zap.Error(err))
		return
	}
	err := c.campaigns.ApplyReceipt(ctx, services.ReceiptUpdate{
		MessageID:    receipt.MessageID,
		Status:       receipt.Status,
		ErrorMessage: receipt.ErrorMessage,
	})
	if err != nil {
		c.log.Error("failed to apply delivery receipt",
			zap.String("messageId", receipt.MessageID), zap.Error(err))
	}
}

func (c *Consumers) onEventCallback(ctx context.Context, envelope Envelope) {
	var callback EventCallback
	if err := json.Unmarshal(envelope.Payload, &callback); err != nil {
		c.log.Error("invalid event.callback payload", zap.Error(err))
		return
	}
	event := models.EngagementEvent{
		Type:      callback.EventType,
		URL:       callback.URL,
		ReplyText: callback.ReplyText,
		Timestamp: callback.Timestamp,
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = envelope.Timestamp
	}
	if err := c.campaigns.AppendEngagement(ctx, callback.MessageID, event); err != nil {
		c.log.Error("failed to append engagement event",
			zap.String("messageId", callback.MessageID), zap.Error(err))
	}
}
