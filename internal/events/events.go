// Package events carries domain events between the API process and the
// background consumers. The bus is fire-and-forget pub/sub: a publish with no
// live subscriber is lost. That matches the system's design; campaign state
// remains reconstructable from the store, but events published while a
// consumer is down are not replayed.
package events

import (
	"encoding/json"
	"time"
)

// Channel names.
const (
	ChannelCustomerCreated    = "customer.created"
	ChannelCustomerUpdated    = "customer.updated"
	ChannelCustomerDeleted    = "customer.deleted"
	ChannelCustomerBulkCreate = "customer.bulk.create"
	ChannelCampaignCreated    = "campaign.created"
	ChannelDeliveryReceipt    = "delivery.receipt"
	ChannelEventCallback      = "event.callback"
)

// Envelope wraps every published payload. Timestamp is injected at publish
// time when the producer did not set one.
type Envelope struct {
	ID        string          `json:"id"`
	Channel   string          `json:"channel"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// CampaignCreated announces a newly created campaign to the orchestrator.
type CampaignCreated struct {
	CampaignID string `json:"campaignId"`
}

// CustomerChanged covers customer.created/updated/deleted. CustomerIDs holds
// one id for single-customer events and the full batch for bulk creates.
type CustomerChanged struct {
	CustomerIDs []string `json:"customerIds"`
}

// DeliveryReceipt is an externally sourced delivery confirmation, addressed
// by the vendor message id.
type DeliveryReceipt struct {
	MessageID    string            `json:"messageId"`
	Status       string            `json:"status"` // DELIVERED or FAILED
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// EventCallback reports message engagement (open, click, reply).
type EventCallback struct {
	MessageID string    `json:"messageId"`
	EventType string    `json:"eventType"` // OPEN, CLICK, REPLY
	URL       string    `json:"url,omitempty"`
	ReplyText string    `json:"replyText,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
