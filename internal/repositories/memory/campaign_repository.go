package memory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/repositories"
)

var _ repositories.CampaignRepository = (*CampaignRepository)(nil)

// CampaignRepository is an in-memory CampaignRepository. The conditional
// transitions behave like the MongoDB implementation's filtered updates.
type CampaignRepository struct {
	mu        sync.Mutex
	campaigns map[primitive.ObjectID]*models.Campaign
	order     []primitive.ObjectID
}

// NewCampaignRepository creates an empty in-memory campaign repository.
func NewCampaignRepository() *CampaignRepository {
	return &CampaignRepository{campaigns: make(map[primitive.ObjectID]*models.Campaign)}
}

func (r *CampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	campaign.ID = primitive.NewObjectID()
	campaign.CreatedAt = time.Now()
	campaign.UpdatedAt = time.Now()
	clone := *campaign
	r.campaigns[campaign.ID] = &clone
	r.order = append(r.order, campaign.ID)
	return nil
}

func (r *CampaignRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	campaign, ok := r.campaigns[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	clone := *campaign
	return &clone, nil
}

func (r *CampaignRepository) FindAll(ctx context.Context, page, limit int) ([]*models.Campaign, error) {
	return r.findWhere(page, limit, func(*models.Campaign) bool { return true })
}

func (r *CampaignRepository) FindByStatus(ctx context.Context, status string, page, limit int) ([]*models.Campaign, error) {
	return r.findWhere(page, limit, func(c *models.Campaign) bool { return c.Status == status })
}

func (r *CampaignRepository) findWhere(page, limit int, keep func(*models.Campaign) bool) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []*models.Campaign{}
	for _, id := range r.order {
		if keep(r.campaigns[id]) {
			clone := *r.campaigns[id]
			matched = append(matched, &clone)
		}
	}
	start := (page - 1) * limit
	if start >= len(matched) {
		return []*models.Campaign{}, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func (r *CampaignRepository) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.campaigns)), nil
}

func (r *CampaignRepository) FindDueScheduled(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	due := []*models.Campaign{}
	for _, id := range r.order {
		campaign := r.campaigns[id]
		if campaign.Status == models.CampaignStatusDraft &&
			campaign.ScheduledAt != nil && !campaign.ScheduledAt.After(now) {
			clone := *campaign
			due = append(due, &clone)
		}
	}
	return due, nil
}

func (r *CampaignRepository) TryActivate(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	campaign, ok := r.campaigns[id]
	if !ok || campaign.Status != models.CampaignStatusDraft {
		return false, nil
	}
	campaign.Status = models.CampaignStatusActive
	sentAt := at
	campaign.SentAt = &sentAt
	campaign.UpdatedAt = time.Now()
	return true, nil
}

func (r *CampaignRepository) SetAudience(ctx context.Context, id primitive.ObjectID, size int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	campaign, ok := r.campaigns[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	campaign.AudienceSize = size
	campaign.Stats.Pending = size
	campaign.UpdatedAt = time.Now()
	return nil
}

func (r *CampaignRepository) MarkFailed(ctx context.Context, id primitive.ObjectID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	campaign, ok := r.campaigns[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	campaign.Status = models.CampaignStatusFailed
	campaign.FailureReason = reason
	campaign.UpdatedAt = time.Now()
	return nil
}

func (r *CampaignRepository) IncrementStats(ctx context.Context, id primitive.ObjectID, delivered, failed int64) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	campaign, ok := r.campaigns[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	campaign.Stats.Delivered += delivered
	campaign.Stats.Failed += failed
	campaign.UpdatedAt = time.Now()
	clone := *campaign
	return &clone, nil
}

func (r *CampaignRepository) UpdateDerivedStats(ctx context.Context, id primitive.ObjectID, stats models.CampaignStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	campaign, ok := r.campaigns[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	campaign.Stats.Pending = stats.Pending
	campaign.Stats.DeliveredPercentage = stats.DeliveredPercentage
	campaign.Stats.FailedPercentage = stats.FailedPercentage
	campaign.UpdatedAt = time.Now()
	return nil
}

func (r *CampaignRepository) TryComplete(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	campaign, ok := r.campaigns[id]
	if !ok || campaign.Status != models.CampaignStatusActive {
		return false, nil
	}
	if campaign.Stats.Delivered+campaign.Stats.Failed < campaign.AudienceSize {
		return false, nil
	}
	campaign.Status = models.CampaignStatusCompleted
	completedAt := at
	campaign.CompletedAt = &completedAt
	campaign.UpdatedAt = time.Now()
	return true, nil
}
