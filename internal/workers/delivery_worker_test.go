package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/repositories/memory"
	"github.com/pulsecrm/pulse-crm-backend/internal/services"
	"github.com/pulsecrm/pulse-crm-backend/pkg/gateway"
)

type workerFixture struct {
	customers *memory.CustomerRepository
	campaigns *memory.CampaignRepository
	logs      *memory.CommunicationLogRepository
	service   *services.CampaignService
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	customers := memory.NewCustomerRepository()
	segments := memory.NewSegmentRepository()
	campaigns := memory.NewCampaignRepository()
	logs := memory.NewCommunicationLogRepository()
	service := services.NewCampaignService(
		campaigns, segments, logs,
		services.NewAudienceResolver(customers), zap.NewNop(),
	)
	return &workerFixture{customers: customers, campaigns: campaigns, logs: logs, service: service}
}

func (f *workerFixture) worker(gw gateway.Gateway, batchSize int64) *DeliveryWorker {
	return NewDeliveryWorker(f.logs, f.service, gw, zap.NewNop(), batchSize, time.Second, time.Second)
}

// activeCampaign seeds n matching customers and activates a campaign over them.
func (f *workerFixture) activeCampaign(t *testing.T, n int) *models.Campaign {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		require.NoError(t, f.customers.Create(ctx, &models.Customer{
			Name:       "Customer",
			Email:      string(rune('a'+i)) + "@example.com",
			TotalSpend: 1000,
		}))
	}
	campaign := &models.Campaign{
		Name:    "delivery",
		Message: "hello {{name}}",
		Rules: &models.RuleSet{
			ConditionType: models.ConditionTypeAnd,
			Conditions:    []models.Condition{{Field: "totalSpend", Operator: "greaterThan", Value: 1.0}},
		},
	}
	require.NoError(t, f.service.CreateCampaign(ctx, campaign))
	require.NoError(t, f.service.Activate(ctx, campaign.ID))
	return campaign
}

func TestTickDeliversWholeBatchAndCompletesCampaign(t *testing.T) {
	f := newWorkerFixture(t)
	campaign := f.activeCampaign(t, 3)
	worker := f.worker(gateway.NewSimulatedGateway(1.0, 0, 0), 10)

	processed, err := worker.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, processed)

	stored, err := f.campaigns.FindByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, stored.Status)
	assert.Equal(t, int64(3), stored.Stats.Delivered)
	assert.Equal(t, int64(0), stored.Stats.Failed)
	assert.Equal(t, int64(0), stored.Stats.Pending)
	assert.Equal(t, float64(100), stored.Stats.DeliveredPercentage)

	sent, err := f.logs.CountByStatus(context.Background(), campaign.ID, models.LogStatusSent)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sent)
}

func TestTickFailuresStillCompleteCampaign(t *testing.T) {
	f := newWorkerFixture(t)
	campaign := f.activeCampaign(t, 2)
	worker := f.worker(gateway.NewSimulatedGateway(0.0, 0, 0), 10)

	processed, err := worker.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	stored, err := f.campaigns.FindByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, stored.Status)
	assert.Equal(t, int64(0), stored.Stats.Delivered)
	assert.Equal(t, int64(2), stored.Stats.Failed)

	logs, err := f.logs.FindByCampaignID(context.Background(), campaign.ID, 1, 10)
	require.NoError(t, err)
	for _, entry := range logs {
		assert.Equal(t, models.LogStatusFailed, entry.Status)
		assert.NotEmpty(t, entry.ErrorMessage)
	}
}

func TestTickRespectsBatchSize(t *testing.T) {
	f := newWorkerFixture(t)
	campaign := f.activeCampaign(t, 5)
	worker := f.worker(gateway.NewSimulatedGateway(1.0, 0, 0), 2)

	processed, err := worker.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	stored, err := f.campaigns.FindByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusActive, stored.Status)
	assert.Equal(t, int64(3), stored.Stats.Pending)

	// Remaining logs drain over subsequent ticks.
	for i := 0; i < 2; i++ {
		_, err = worker.Tick(context.Background())
		require.NoError(t, err)
	}
	stored, err = f.campaigns.FindByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, stored.Status)
	assert.Equal(t, int64(5), stored.Stats.Delivered)
}

func TestConcurrentTicksNeverDoubleProcess(t *testing.T) {
	f := newWorkerFixture(t)
	campaign := f.activeCampaign(t, 20)
	worker := f.worker(gateway.NewSimulatedGateway(1.0, 0, 0), 20)

	var wg sync.WaitGroup
	totals := make([]int, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			processed, err := worker.Tick(context.Background())
			assert.NoError(t, err)
			totals[slot] = processed
		}(i)
	}
	wg.Wait()

	sum := 0
	for _, n := range totals {
		sum += n
	}
	assert.Equal(t, 20, sum, "each log is delivered exactly once across overlapping ticks")

	stored, err := f.campaigns.FindByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), stored.Stats.Delivered)
	assert.Equal(t, models.CampaignStatusCompleted, stored.Status)
}

func TestSendTimeoutFailsOnlyThatLog(t *testing.T) {
	f := newWorkerFixture(t)
	campaign := f.activeCampaign(t, 1)

	// Latency far beyond the worker's send timeout.
	slow := gateway.NewSimulatedGateway(1.0, time.Minute, time.Minute)
	worker := NewDeliveryWorker(f.logs, f.service, slow, zap.NewNop(), 10, time.Second, 10*time.Millisecond)

	processed, err := worker.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	logs, err := f.logs.FindByCampaignID(context.Background(), campaign.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.LogStatusFailed, logs[0].Status)
	assert.Contains(t, logs[0].ErrorMessage, "deadline")

	stored, err := f.campaigns.FindByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Stats.Failed)
}

func TestTickWithNothingPendingIsANoop(t *testing.T) {
	f := newWorkerFixture(t)
	worker := f.worker(gateway.NewSimulatedGateway(1.0, 0, 0), 10)

	processed, err := worker.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}
