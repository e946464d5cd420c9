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

var _ repositories.SegmentRepository = (*SegmentRepository)(nil)

// SegmentRepository is an in-memory SegmentRepository.
type SegmentRepository struct {
	mu       sync.RWMutex
	segments map[primitive.ObjectID]*models.Segment
	order    []primitive.ObjectID
}

// NewSegmentRepository creates an empty in-memory segment repository.
func NewSegmentRepository() *SegmentRepository {
	return &SegmentRepository{segments: make(map[primitive.ObjectID]*models.Segment)}
}

func (r *SegmentRepository) Create(ctx context.Context, segment *models.Segment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	segment.ID = primitive.NewObjectID()
	segment.CreatedAt = time.Now()
	segment.UpdatedAt = time.Now()
	clone := *segment
	r.segments[segment.ID] = &clone
	r.order = append(r.order, segment.ID)
	return nil
}

func (r *SegmentRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Segment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	segment, ok := r.segments[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	clone := *segment
	return &clone, nil
}

func (r *SegmentRepository) FindAll(ctx context.Context, page, limit int) ([]*models.Segment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	start := (page - 1) * limit
	segments := []*models.Segment{}
	for i := start; i < len(r.order) && i < start+limit; i++ {
		clone := *r.segments[r.order[i]]
		segments = append(segments, &clone)
	}
	return segments, nil
}

func (r *SegmentRepository) Update(ctx context.Context, segment *models.Segment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.segments[segment.ID]; !ok {
		return mongo.ErrNoDocuments
	}
	segment.UpdatedAt = time.Now()
	clone := *segment
	r.segments[segment.ID] = &clone
	return nil
}

func (r *SegmentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.segments, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *SegmentRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.segments)), nil
}

func (r *SegmentRepository) UpdateAudience(ctx context.Context, id primitive.ObjectID, size int64, refreshedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	segment, ok := r.segments[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	segment.AudienceSize = size
	segment.LastRefreshed = refreshedAt
	segment.UpdatedAt = time.Now()
	return nil
}
