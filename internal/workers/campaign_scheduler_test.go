package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
)

func TestSchedulerTickPromotesDueCampaigns(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	campaign := &models.Campaign{
		Name:    "scheduled",
		Message: "hello {{name}}",
		Rules: &models.RuleSet{
			ConditionType: models.ConditionTypeAnd,
			Conditions:    []models.Condition{{Field: "totalSpend", Operator: "greaterThan", Value: 1.0}},
		},
		ScheduledAt: &past,
	}
	require.NoError(t, f.service.CreateCampaign(ctx, campaign))

	scheduler := NewCampaignScheduler(f.service, zap.NewNop(), time.Minute)

	activated, err := scheduler.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, activated)

	stored, err := f.campaigns.FindByID(ctx, campaign.ID)
	require.NoError(t, err)
	// No matching customers, so the due campaign completes on activation.
	assert.Equal(t, models.CampaignStatusCompleted, stored.Status)

	// A second tick finds nothing due.
	activated, err = scheduler.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, activated)
}

func TestSchedulerTickLeavesFutureCampaignsAlone(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	future := time.Now().Add(time.Hour)
	campaign := &models.Campaign{
		Name:    "future",
		Message: "hello",
		Rules: &models.RuleSet{
			ConditionType: models.ConditionTypeAnd,
			Conditions:    []models.Condition{{Field: "totalSpend", Operator: "greaterThan", Value: 1.0}},
		},
		ScheduledAt: &future,
	}
	require.NoError(t, f.service.CreateCampaign(ctx, campaign))

	scheduler := NewCampaignScheduler(f.service, zap.NewNop(), time.Minute)
	activated, err := scheduler.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, activated)

	stored, err := f.campaigns.FindByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusDraft, stored.Status)
}
