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

var _ repositories.CommunicationLogRepository = (*CommunicationLogRepository)(nil)

// CommunicationLogRepository is an in-memory CommunicationLogRepository.
// Claim is exclusive under the mutex, matching the MongoDB conditional
// update.
type CommunicationLogRepository struct {
	mu    sync.Mutex
	logs  map[primitive.ObjectID]*models.CommunicationLog
	order []primitive.ObjectID
}

// NewCommunicationLogRepository creates an empty in-memory log repository.
func NewCommunicationLogRepository() *CommunicationLogRepository {
	return &CommunicationLogRepository{logs: make(map[primitive.ObjectID]*models.CommunicationLog)}
}

func (r *CommunicationLogRepository) CreateMany(ctx context.Context, logs []*models.CommunicationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, log := range logs {
		log.ID = primitive.NewObjectID()
		log.CreatedAt = now
		log.UpdatedAt = now
		clone := *log
		r.logs[log.ID] = &clone
		r.order = append(r.order, log.ID)
	}
	return nil
}

func (r *CommunicationLogRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommunicationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log, ok := r.logs[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	clone := *log
	return &clone, nil
}

func (r *CommunicationLogRepository) FindByCampaignID(ctx context.Context, campaignID primitive.ObjectID, page, limit int) ([]*models.CommunicationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []*models.CommunicationLog{}
	for _, id := range r.order {
		if r.logs[id].CampaignID == campaignID {
			clone := *r.logs[id]
			matched = append(matched, &clone)
		}
	}
	start := (page - 1) * limit
	if start >= len(matched) {
		return []*models.CommunicationLog{}, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func (r *CommunicationLogRepository) FindByVendorMessageID(ctx context.Context, messageID string) (*models.CommunicationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if r.logs[id].Vendor.MessageID == messageID {
			clone := *r.logs[id]
			return &clone, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *CommunicationLogRepository) CountByStatus(ctx context.Context, campaignID primitive.ObjectID, status string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, log := range r.logs {
		if log.CampaignID == campaignID && log.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *CommunicationLogRepository) FindPending(ctx context.Context, limit int64) ([]*models.CommunicationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := []*models.CommunicationLog{}
	for _, id := range r.order {
		if int64(len(pending)) >= limit {
			break
		}
		if r.logs[id].Status == models.LogStatusPending {
			clone := *r.logs[id]
			pending = append(pending, &clone)
		}
	}
	return pending, nil
}

func (r *CommunicationLogRepository) Claim(ctx context.Context, id primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log, ok := r.logs[id]
	if !ok || log.Status != models.LogStatusPending {
		return false, nil
	}
	log.Status = models.LogStatusProcessing
	log.UpdatedAt = time.Now()
	return true, nil
}

func (r *CommunicationLogRepository) MarkResult(ctx context.Context, id primitive.ObjectID, status string, sentAt time.Time, vendorMessageID, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log, ok := r.logs[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	log.Status = status
	at := sentAt
	log.SentAt = &at
	if vendorMessageID != "" {
		log.Vendor.MessageID = vendorMessageID
	}
	if errorMessage != "" {
		log.ErrorMessage = errorMessage
	}
	log.UpdatedAt = time.Now()
	return nil
}

func (r *CommunicationLogRepository) MarkDelivered(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log, ok := r.logs[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	deliveredAt := at
	log.DeliveredAt = &deliveredAt
	log.Vendor.DeliveredAt = &deliveredAt
	log.UpdatedAt = time.Now()
	return nil
}

func (r *CommunicationLogRepository) AppendEvent(ctx context.Context, id primitive.ObjectID, event models.EngagementEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log, ok := r.logs[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	log.Vendor.Events = append(log.Vendor.Events, event)
	log.UpdatedAt = time.Now()
	return nil
}
