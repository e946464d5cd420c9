package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Campaign lifecycle statuses. Transitions are monotonic:
// DRAFT -> ACTIVE -> COMPLETED, with ACTIVE -> FAILED only when audience
// resolution fails unrecoverably.
const (
	CampaignStatusDraft     = "DRAFT"
	CampaignStatusActive    = "ACTIVE"
	CampaignStatusCompleted = "COMPLETED"
	CampaignStatusFailed    = "FAILED"
)

// CampaignStats aggregates per-delivery outcomes back onto the campaign.
// Invariant once the audience is resolved: Delivered + Failed + Pending ==
// Campaign.AudienceSize.
type CampaignStats struct {
	Delivered           int64   `bson:"delivered" json:"delivered"`
	Failed              int64   `bson:"failed" json:"failed"`
	Pending             int64   `bson:"pending" json:"pending"`
	DeliveredPercentage float64 `bson:"deliveredPercentage" json:"deliveredPercentage"`
	FailedPercentage    float64 `bson:"failedPercentage" json:"failedPercentage"`
}

// Campaign binds a message template to an audience, defined either by a
// referenced segment or by an inline rule set (exactly one must be set).
type Campaign struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	Name          string              `bson:"name" json:"name"`
	Message       string              `bson:"message" json:"message"` // template with a {{name}} placeholder
	Status        string              `bson:"status" json:"status"`
	SegmentID     *primitive.ObjectID `bson:"segmentId,omitempty" json:"segmentId,omitempty"`
	Rules         *RuleSet            `bson:"rules,omitempty" json:"rules,omitempty"`
	AudienceSize  int64               `bson:"audienceSize" json:"audienceSize"`
	Stats         CampaignStats       `bson:"stats" json:"stats"`
	ScheduledAt   *time.Time          `bson:"scheduledAt,omitempty" json:"scheduledAt,omitempty"`
	SentAt        *time.Time          `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
	CompletedAt   *time.Time          `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	FailureReason string              `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	CreatedBy     string              `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// HasRuleSource reports whether the campaign has exactly one audience source.
func (c *Campaign) HasRuleSource() bool {
	return (c.SegmentID != nil) != (c.Rules != nil)
}
