package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/repositories/memory"
)

func newSegmentFixture(t *testing.T) (*SegmentService, *memory.CustomerRepository, *memory.SegmentRepository) {
	t.Helper()
	customers := memory.NewCustomerRepository()
	segments := memory.NewSegmentRepository()
	service := NewSegmentService(segments, NewAudienceResolver(customers), zap.NewNop())
	return service, customers, segments
}

func seedSpenders(t *testing.T, customers *memory.CustomerRepository, spends ...float64) {
	t.Helper()
	for i, spend := range spends {
		require.NoError(t, customers.Create(context.Background(), &models.Customer{
			Name:       "Customer",
			Email:      string(rune('a'+i)) + "@example.com",
			TotalSpend: spend,
		}))
	}
}

func TestCreateSegmentComputesAudienceSize(t *testing.T) {
	service, customers, _ := newSegmentFixture(t)
	ctx := context.Background()

	seedSpenders(t, customers, 5000, 15000, 20000)

	segment := &models.Segment{
		Name:          "high value",
		ConditionType: models.ConditionTypeAnd,
		Conditions:    []models.Condition{{Field: "totalSpend", Operator: "greaterThan", Value: 10000.0}},
	}
	require.NoError(t, service.CreateSegment(ctx, segment))

	assert.Equal(t, int64(2), segment.AudienceSize)
	assert.False(t, segment.LastRefreshed.IsZero())
}

func TestCreateSegmentRejectsInvalidRules(t *testing.T) {
	service, _, segments := newSegmentFixture(t)
	ctx := context.Background()

	segment := &models.Segment{
		Name:          "broken",
		ConditionType: models.ConditionTypeAnd,
		Conditions:    []models.Condition{{Field: "totalSpend", Operator: "fuzzyMatch", Value: 1.0}},
	}
	require.Error(t, service.CreateSegment(ctx, segment))

	count, err := segments.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "invalid segment must not be stored")
}

func TestRefreshSegmentPicksUpCustomerChanges(t *testing.T) {
	service, customers, _ := newSegmentFixture(t)
	ctx := context.Background()

	segment := &models.Segment{
		Name:          "spenders",
		ConditionType: models.ConditionTypeAnd,
		Conditions:    []models.Condition{{Field: "totalSpend", Operator: "greaterThan", Value: 100.0}},
	}
	require.NoError(t, service.CreateSegment(ctx, segment))
	assert.Equal(t, int64(0), segment.AudienceSize)

	seedSpenders(t, customers, 500)

	count, err := service.RefreshSegment(ctx, segment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stored, err := service.GetSegmentByID(ctx, segment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.AudienceSize)
}

func TestRefreshAllSegmentsUpdatesEveryCache(t *testing.T) {
	service, customers, _ := newSegmentFixture(t)
	ctx := context.Background()

	low := &models.Segment{
		Name:          "low",
		ConditionType: models.ConditionTypeAnd,
		Conditions:    []models.Condition{{Field: "totalSpend", Operator: "lessThan", Value: 100.0}},
	}
	high := &models.Segment{
		Name:          "high",
		ConditionType: models.ConditionTypeAnd,
		Conditions:    []models.Condition{{Field: "totalSpend", Operator: "greaterThanOrEqual", Value: 100.0}},
	}
	require.NoError(t, service.CreateSegment(ctx, low))
	require.NoError(t, service.CreateSegment(ctx, high))

	seedSpenders(t, customers, 50, 150, 250)
	service.RefreshAllSegments(ctx)

	storedLow, err := service.GetSegmentByID(ctx, low.ID)
	require.NoError(t, err)
	storedHigh, err := service.GetSegmentByID(ctx, high.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), storedLow.AudienceSize)
	assert.Equal(t, int64(2), storedHigh.AudienceSize)
}

func TestPreviewAudienceCountsAllButSamplesFive(t *testing.T) {
	service, customers, _ := newSegmentFixture(t)
	ctx := context.Background()

	seedSpenders(t, customers, 100, 200, 300, 400, 500, 600, 700)

	preview, err := service.PreviewAudience(ctx, models.RuleSet{
		ConditionType: models.ConditionTypeAnd,
		Conditions:    []models.Condition{{Field: "totalSpend", Operator: "greaterThan", Value: 0.0}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), preview.Count)
	assert.Len(t, preview.Sample, PreviewSampleSize)
}

func TestPreviewAudienceRejectsInvalidRules(t *testing.T) {
	service, _, _ := newSegmentFixture(t)

	_, err := service.PreviewAudience(context.Background(), models.RuleSet{
		ConditionType: "NOR",
		Conditions:    []models.Condition{{Field: "totalSpend", Operator: "equals", Value: 1.0}},
	})
	assert.Error(t, err)
}
