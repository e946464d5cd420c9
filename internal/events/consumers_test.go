package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/repositories/memory"
	"github.com/pulsecrm/pulse-crm-backend/internal/services"
)

type consumerFixture struct {
	bus       *MemoryBus
	customers *memory.CustomerRepository
	segments  *memory.SegmentRepository
	campaigns *memory.CampaignRepository
	logs      *memory.CommunicationLogRepository

	segmentService  *services.SegmentService
	campaignService *services.CampaignService
}

func newConsumerFixture(t *testing.T) *consumerFixture {
	t.Helper()
	f := &consumerFixture{
		bus:       NewMemoryBus(),
		customers: memory.NewCustomerRepository(),
		segments:  memory.NewSegmentRepository(),
		campaigns: memory.NewCampaignRepository(),
		logs:      memory.NewCommunicationLogRepository(),
	}
	resolver := services.NewAudienceResolver(f.customers)
	f.segmentService = services.NewSegmentService(f.segments, resolver, zap.NewNop())
	f.campaignService = services.NewCampaignService(f.campaigns, f.segments, f.logs, resolver, zap.NewNop())

	consumers := NewConsumers(f.bus, f.campaignService, f.segmentService, zap.NewNop())
	require.NoError(t, consumers.Start(context.Background()))
	return f
}

func TestCampaignCreatedEventTriggersActivation(t *testing.T) {
	f := newConsumerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.customers.Create(ctx, &models.Customer{
		Name: "Ada", Email: "ada@example.com", TotalSpend: 100,
	}))

	campaign := &models.Campaign{
		Name:    "welcome",
		Message: "hi {{name}}",
		Rules: &models.RuleSet{
			ConditionType: models.ConditionTypeAnd,
			Conditions:    []models.Condition{{Field: "totalSpend", Operator: "greaterThan", Value: 1.0}},
		},
	}
	require.NoError(t, f.campaignService.CreateCampaign(ctx, campaign))

	// The memory bus dispatches synchronously, so activation completes here.
	require.NoError(t, f.bus.Publish(ctx, ChannelCampaignCreated, CampaignCreated{CampaignID: campaign.ID.Hex()}))

	stored, err := f.campaigns.FindByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusActive, stored.Status)
	assert.Equal(t, int64(1), stored.AudienceSize)
}

func TestCustomerEventsRefreshSegmentCaches(t *testing.T) {
	f := newConsumerFixture(t)
	ctx := context.Background()

	segment := &models.Segment{
		Name:          "spenders",
		ConditionType: models.ConditionTypeAnd,
		Conditions:    []models.Condition{{Field: "totalSpend", Operator: "greaterThan", Value: 50.0}},
	}
	require.NoError(t, f.segmentService.CreateSegment(ctx, segment))
	assert.Equal(t, int64(0), segment.AudienceSize)

	customer := &models.Customer{Name: "Ada", Email: "ada@example.com", TotalSpend: 100}
	require.NoError(t, f.customers.Create(ctx, customer))
	require.NoError(t, f.bus.Publish(ctx, ChannelCustomerCreated, CustomerChanged{CustomerIDs: []string{customer.ID.Hex()}}))

	stored, err := f.segments.FindByID(ctx, segment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.AudienceSize)
}

func TestDeliveryReceiptEventMarksLogDelivered(t *testing.T) {
	f := newConsumerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.logs.CreateMany(ctx, []*models.CommunicationLog{{
		CampaignID: f.newActiveCampaignID(t),
		Recipient:  "ada@example.com",
		Message:    "hi Ada",
		Status:     models.LogStatusPending,
	}}))
	pending, err := f.logs.FindPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	entry := pending[0]

	claimed, err := f.logs.Claim(ctx, entry.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, f.logs.MarkResult(ctx, entry.ID, models.LogStatusSent, entry.CreatedAt, "VENDOR-9", ""))

	require.NoError(t, f.bus.Publish(ctx, ChannelDeliveryReceipt, DeliveryReceipt{MessageID: "VENDOR-9", Status: "DELIVERED"}))

	updated, err := f.logs.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.NotNil(t, updated.DeliveredAt)
}

func TestEventCallbackAppendsEngagement(t *testing.T) {
	f := newConsumerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.logs.CreateMany(ctx, []*models.CommunicationLog{{
		CampaignID: f.newActiveCampaignID(t),
		Recipient:  "ada@example.com",
		Message:    "hi Ada",
		Status:     models.LogStatusPending,
	}}))
	pending, err := f.logs.FindPending(ctx, 1)
	require.NoError(t, err)
	entry := pending[0]

	claimed, err := f.logs.Claim(ctx, entry.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, f.logs.MarkResult(ctx, entry.ID, models.LogStatusSent, entry.CreatedAt, "VENDOR-10", ""))

	require.NoError(t, f.bus.Publish(ctx, ChannelEventCallback, EventCallback{
		MessageID: "VENDOR-10",
		EventType: "REPLY",
		ReplyText: "count me in",
	}))

	updated, err := f.logs.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, updated.Vendor.Events, 1)
	assert.Equal(t, "REPLY", updated.Vendor.Events[0].Type)
	assert.Equal(t, "count me in", updated.Vendor.Events[0].ReplyText)
	assert.False(t, updated.Vendor.Events[0].Timestamp.IsZero(), "missing callback timestamp falls back to the envelope's")
}

// newActiveCampaignID stores a minimal ACTIVE campaign and returns its id.
func (f *consumerFixture) newActiveCampaignID(t *testing.T) primitive.ObjectID {
	t.Helper()
	campaign := &models.Campaign{
		Name:    "carrier",
		Message: "hi",
		Status:  models.CampaignStatusActive,
	}
	require.NoError(t, f.campaigns.Create(context.Background(), campaign))
	return campaign.ID
}
