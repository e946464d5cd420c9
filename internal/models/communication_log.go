package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CommunicationLog statuses. PENDING rows are created in bulk at campaign
// activation; a delivery worker claims a row (PROCESSING) and moves it to
// exactly one terminal state. There is no path back.
const (
	LogStatusPending    = "PENDING"
	LogStatusProcessing = "PROCESSING"
	LogStatusSent       = "SENT"
	LogStatusFailed     = "FAILED"
)

// EngagementEvent is an externally reported interaction with a delivered
// message (open, click, reply).
type EngagementEvent struct {
	Type      string    `bson:"type" json:"type"` // OPEN, CLICK, REPLY
	URL       string    `bson:"url,omitempty" json:"url,omitempty"`
	ReplyText string    `bson:"replyText,omitempty" json:"replyText,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// VendorMetadata holds vendor-reported details for one delivery.
type VendorMetadata struct {
	MessageID   string            `bson:"messageId,omitempty" json:"messageId,omitempty"`
	DeliveredAt *time.Time        `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	Events      []EngagementEvent `bson:"events,omitempty" json:"events,omitempty"`
}

// CommunicationLog tracks one delivery attempt for one (campaign, customer)
// pair. The message body is pre-personalized at creation time.
type CommunicationLog struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	CampaignID   primitive.ObjectID `bson:"campaignId" json:"campaignId"`
	CustomerID   primitive.ObjectID `bson:"customerId" json:"customerId"`
	Recipient    string             `bson:"recipient" json:"recipient"`
	Message      string             `bson:"message" json:"message"`
	Status       string             `bson:"status" json:"status"`
	SentAt       *time.Time         `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
	DeliveredAt  *time.Time         `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	ErrorMessage string             `bson:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	Vendor       VendorMetadata     `bson:"vendor,omitempty" json:"vendor,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
