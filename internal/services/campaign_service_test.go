package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/repositories/memory"
)

type campaignFixture struct {
	customers *memory.CustomerRepository
	segments  *memory.SegmentRepository
	campaigns *memory.CampaignRepository
	logs      *memory.CommunicationLogRepository
	service   *CampaignService
}

func newCampaignFixture(t *testing.T) *campaignFixture {
	t.Helper()
	customers := memory.NewCustomerRepository()
	segments := memory.NewSegmentRepository()
	campaigns := memory.NewCampaignRepository()
	logs := memory.NewCommunicationLogRepository()
	resolver := NewAudienceResolver(customers)
	service := NewCampaignService(campaigns, segments, logs, resolver, zap.NewNop())
	return &campaignFixture{
		customers: customers,
		segments:  segments,
		campaigns: campaigns,
		logs:      logs,
		service:   service,
	}
}

func (f *campaignFixture) seedCustomers(t *testing.T, specs ...*models.Customer) {
	t.Helper()
	for _, c := range specs {
		require.NoError(t, f.customers.Create(context.Background(), c))
	}
}

func spendRules(min float64) *models.RuleSet {
	return &models.RuleSet{
		ConditionType: models.ConditionTypeAnd,
		Conditions: []models.Condition{
			{Field: "totalSpend", Operator: "greaterThan", Value: min},
		},
	}
}

func TestCreateCampaignRequiresExactlyOneRuleSource(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()

	err := f.service.CreateCampaign(ctx, &models.Campaign{Name: "no source", Message: "hi"})
	assert.ErrorIs(t, err, ErrNoRuleSource)

	segment := &models.Segment{
		Name:          "spenders",
		ConditionType: models.ConditionTypeAnd,
		Conditions:    []models.Condition{{Field: "totalSpend", Operator: "greaterThan", Value: 10.0}},
	}
	require.NoError(t, f.segments.Create(ctx, segment))

	both := &models.Campaign{
		Name:      "both sources",
		Message:   "hi",
		SegmentID: &segment.ID,
		Rules:     spendRules(10),
	}
	assert.ErrorIs(t, f.service.CreateCampaign(ctx, both), ErrNoRuleSource)
}

func TestCreateCampaignRejectsDanglingSegment(t *testing.T) {
	f := newCampaignFixture(t)

	missing := primitive.NewObjectID()
	campaign := &models.Campaign{Name: "dangling", Message: "hi", SegmentID: &missing}
	assert.ErrorIs(t, f.service.CreateCampaign(context.Background(), campaign), ErrSegmentNotFound)
}

func TestCreateCampaignRejectsMalformedInlineRules(t *testing.T) {
	f := newCampaignFixture(t)

	campaign := &models.Campaign{
		Name:    "bad rules",
		Message: "hi",
		Rules: &models.RuleSet{
			ConditionType: models.ConditionTypeAnd,
			Conditions:    []models.Condition{{Field: "totalSpend", Operator: "approximately", Value: 5.0}},
		},
	}
	assert.Error(t, f.service.CreateCampaign(context.Background(), campaign))
}

func TestCreateCampaignStartsInDraft(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()

	campaign := &models.Campaign{
		Name:    "launch",
		Message: "hi",
		Rules:   spendRules(10),
		Status:  "ACTIVE", // caller-supplied status is ignored
		Stats:   models.CampaignStats{Delivered: 99},
	}
	require.NoError(t, f.service.CreateCampaign(ctx, campaign))

	stored, err := f.campaigns.FindByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusDraft, stored.Status)
	assert.Equal(t, models.CampaignStats{}, stored.Stats)
}

func TestActivateCreatesPersonalizedPendingLogs(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()

	f.seedCustomers(t,
		&models.Customer{Name: "Ada", Email: "ada@example.com", TotalSpend: 500},
		&models.Customer{Name: "Bola", Email: "bola@example.com", TotalSpend: 700},
		&models.Customer{Name: "Chidi", Email: "chidi@example.com", TotalSpend: 5},
	)

	campaign := &models.Campaign{Name: "big spenders", Message: "Hello {{name}}!", Rules: spendRules(100)}
	require.NoError(t, f.service.CreateCampaign(ctx, campaign))
	require.NoError(t, f.service.Activate(ctx, campaign.ID))

	stored, err := f.campaigns.FindByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusActive, stored.Status)
	assert.Equal(t, int64(2), stored.AudienceSize)
	assert.Equal(t, int64(2), stored.Stats.Pending)
	require.NotNil(t, stored.SentAt)

	logs, err := f.logs.FindByCampaignID(ctx, campaign.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	messages := map[string]string{}
	for _, entry := range logs {
		assert.Equal(t, models.LogStatusPending, entry.Status)
		messages[entry.Recipient] = entry.Message
	}
	assert.Equal(t, "Hello Ada!", messages["ada@example.com"])
	assert.Equal(t, "Hello Bola!", messages["bola@example.com"])
}

func TestActivateIsIdempotent(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()

	f.seedCustomers(t, &models.Customer{Name: "Ada", Email: "ada@example.com", TotalSpend: 500})

	campaign := &models.Campaign{Name: "once", Message: "hi {{name}}", Rules: spendRules(100)}
	require.NoError(t, f.service.CreateCampaign(ctx, campaign))
	require.NoError(t, f.service.Activate(ctx, campaign.ID))
	require.NoError(t, f.service.Activate(ctx, campaign.ID))

	logs, err := f.logs.FindByCampaignID(ctx, campaign.ID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1, "second activation must not duplicate logs")
}

func TestActivateEmptyAudienceCompletesImmediately(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()

	campaign := &models.Campaign{Name: "nobody", Message: "hi", Rules: spendRules(1000000)}
	require.NoError(t, f.service.CreateCampaign(ctx, campaign))
	require.NoError(t, f.service.Activate(ctx, campaign.ID))

	stored, err := f.campaigns.FindByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, stored.Status)
	assert.Equal(t, int64(0), stored.AudienceSize)
	require.NotNil(t, stored.CompletedAt)
}

func TestActivateWithDeletedSegmentFailsCampaign(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()

	segment := &models.Segment{
		Name:          "doomed",
		ConditionType: models.ConditionTypeAnd,
		Conditions:    []models.Condition{{Field: "totalSpend", Operator: "greaterThan", Value: 10.0}},
	}
	require.NoError(t, f.segments.Create(ctx, segment))

	campaign := &models.Campaign{Name: "orphaned", Message: "hi", SegmentID: &segment.ID}
	require.NoError(t, f.service.CreateCampaign(ctx, campaign))

	// Segment disappears between creation and activation.
	require.NoError(t, f.segments.Delete(ctx, segment.ID))

	err := f.service.Activate(ctx, campaign.ID)
	require.Error(t, err)
	var resErr *AudienceResolutionError
	assert.ErrorAs(t, err, &resErr)

	stored, err := f.campaigns.FindByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.FailureReason)
}

func TestHandleCampaignCreatedDefersFutureSchedule(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()

	future := time.Now().Add(time.Hour)
	campaign := &models.Campaign{Name: "later", Message: "hi", Rules: spendRules(0), ScheduledAt: &future}
	require.NoError(t, f.service.CreateCampaign(ctx, campaign))
	require.NoError(t, f.service.HandleCampaignCreated(ctx, campaign.ID))

	stored, err := f.campaigns.FindByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusDraft, stored.Status, "future-scheduled campaign waits for the scheduler")
}

func TestActivateDuePromotesOnlyDueCampaigns(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	due := &models.Campaign{Name: "due", Message: "hi", Rules: spendRules(1000000), ScheduledAt: &past}
	notDue := &models.Campaign{Name: "not due", Message: "hi", Rules: spendRules(1000000), ScheduledAt: &future}
	require.NoError(t, f.service.CreateCampaign(ctx, due))
	require.NoError(t, f.service.CreateCampaign(ctx, notDue))

	activated, err := f.service.ActivateDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, activated)

	storedDue, err := f.campaigns.FindByID(ctx, due.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.CampaignStatusDraft, storedDue.Status)

	storedNotDue, err := f.campaigns.FindByID(ctx, notDue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusDraft, storedNotDue.Status)

	// A second pass finds nothing left to activate.
	activated, err = f.service.ActivateDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, activated)
}

func TestApplyBatchStatsAccumulatesAndCompletes(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()

	f.seedCustomers(t,
		&models.Customer{Name: "Ada", Email: "ada@example.com", TotalSpend: 500},
		&models.Customer{Name: "Bola", Email: "bola@example.com", TotalSpend: 700},
		&models.Customer{Name: "Chidi", Email: "chidi@example.com", TotalSpend: 900},
	)

	campaign := &models.Campaign{Name: "stats", Message: "hi {{name}}", Rules: spendRules(100)}
	require.NoError(t, f.service.CreateCampaign(ctx, campaign))
	require.NoError(t, f.service.Activate(ctx, campaign.ID))

	require.NoError(t, f.service.ApplyBatchStats(ctx, campaign.ID, 2, 0))
	stored, err := f.campaigns.FindByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusActive, stored.Status)
	assert.Equal(t, int64(2), stored.Stats.Delivered)
	assert.Equal(t, int64(1), stored.Stats.Pending)
	assert.InDelta(t, 66.67, stored.Stats.DeliveredPercentage, 0.01)

	require.NoError(t, f.service.ApplyBatchStats(ctx, campaign.ID, 0, 1))
	stored, err = f.campaigns.FindByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, stored.Status)
	assert.Equal(t, int64(3), stored.Stats.Delivered+stored.Stats.Failed)
	assert.Equal(t, int64(0), stored.Stats.Pending)
	assert.InDelta(t, 33.33, stored.Stats.FailedPercentage, 0.01)
}

func TestApplyReceiptMarksDeliveredOnlyOnSentLogs(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()

	f.seedCustomers(t, &models.Customer{Name: "Ada", Email: "ada@example.com", TotalSpend: 500})

	campaign := &models.Campaign{Name: "receipts", Message: "hi {{name}}", Rules: spendRules(100)}
	require.NoError(t, f.service.CreateCampaign(ctx, campaign))
	require.NoError(t, f.service.Activate(ctx, campaign.ID))

	logs, err := f.logs.FindByCampaignID(ctx, campaign.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	entry := logs[0]

	claimed, err := f.logs.Claim(ctx, entry.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, f.logs.MarkResult(ctx, entry.ID, models.LogStatusSent, time.Now(), "VENDOR-1", ""))

	require.NoError(t, f.service.ApplyReceipt(ctx, ReceiptUpdate{MessageID: "VENDOR-1", Status: "DELIVERED"}))

	updated, err := f.logs.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.DeliveredAt)

	// A FAILED receipt for an already-SENT log must not rewrite it.
	require.NoError(t, f.service.ApplyReceipt(ctx, ReceiptUpdate{MessageID: "VENDOR-1", Status: "FAILED", ErrorMessage: "late bounce"}))
	updated, err = f.logs.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LogStatusSent, updated.Status)
}

func TestAppendEngagementStoresEvent(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()

	f.seedCustomers(t, &models.Customer{Name: "Ada", Email: "ada@example.com", TotalSpend: 500})

	campaign := &models.Campaign{Name: "clicks", Message: "hi {{name}}", Rules: spendRules(100)}
	require.NoError(t, f.service.CreateCampaign(ctx, campaign))
	require.NoError(t, f.service.Activate(ctx, campaign.ID))

	logs, err := f.logs.FindByCampaignID(ctx, campaign.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	entry := logs[0]

	claimed, err := f.logs.Claim(ctx, entry.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, f.logs.MarkResult(ctx, entry.ID, models.LogStatusSent, time.Now(), "VENDOR-2", ""))

	event := models.EngagementEvent{Type: "CLICK", URL: "https://example.com/offer", Timestamp: time.Now()}
	require.NoError(t, f.service.AppendEngagement(ctx, "VENDOR-2", event))

	updated, err := f.logs.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, updated.Vendor.Events, 1)
	assert.Equal(t, "CLICK", updated.Vendor.Events[0].Type)
}
