package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/repositories"
	"github.com/pulsecrm/pulse-crm-backend/internal/rules"
)

// SegmentService handles segment-related business logic. The cached audience
// size is recomputed on create, update, explicit refresh, and on customer
// change events; in between it may be stale.
type SegmentService struct {
	segments repositories.SegmentRepository
	resolver *AudienceResolver
	log      *zap.Logger
}

// NewSegmentService creates a new SegmentService
func NewSegmentService(segments repositories.SegmentRepository, resolver *AudienceResolver, log *zap.Logger) *SegmentService {
	return &SegmentService{segments: segments, resolver: resolver, log: log}
}

// CreateSegment validates the rule set, stores the segment, and computes the
// initial audience size. A malformed rule set is rejected synchronously.
func (s *SegmentService) CreateSegment(ctx context.Context, segment *models.Segment) error {
	if _, err := rules.Compile(segment.Rules()); err != nil {
		return err
	}
	if err := s.segments.Create(ctx, segment); err != nil {
		return err
	}
	return s.refresh(ctx, segment)
}

// UpdateSegment validates and stores changed conditions, then recomputes the
// audience cache.
func (s *SegmentService) UpdateSegment(ctx context.Context, segment *models.Segment) error {
	if _, err := rules.Compile(segment.Rules()); err != nil {
		return err
	}
	if err := s.segments.Update(ctx, segment); err != nil {
		return err
	}
	return s.refresh(ctx, segment)
}

// GetSegmentByID retrieves a segment by ID
func (s *SegmentService) GetSegmentByID(ctx context.Context, id primitive.ObjectID) (*models.Segment, error) {
	return s.segments.FindByID(ctx, id)
}

// GetAllSegments retrieves segments with pagination
func (s *SegmentService) GetAllSegments(ctx context.Context, page, limit int) ([]*models.Segment, error) {
	return s.segments.FindAll(ctx, page, limit)
}

// DeleteSegment deletes a segment by ID
func (s *SegmentService) DeleteSegment(ctx context.Context, id primitive.ObjectID) error {
	return s.segments.Delete(ctx, id)
}

// GetSegmentCount counts all segments
func (s *SegmentService) GetSegmentCount(ctx context.Context) (int64, error) {
	return s.segments.Count(ctx)
}

// PreviewAudience resolves a rule set to a count and a small sample without
// touching any stored segment.
func (s *SegmentService) PreviewAudience(ctx context.Context, rs models.RuleSet) (*AudiencePreview, error) {
	return s.resolver.Preview(ctx, rs)
}

// RefreshSegment recomputes one segment's cached audience size.
func (s *SegmentService) RefreshSegment(ctx context.Context, id primitive.ObjectID) (int64, error) {
	segment, err := s.segments.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := s.refresh(ctx, segment); err != nil {
		return 0, err
	}
	return segment.AudienceSize, nil
}

// RefreshAllSegments recomputes every segment's cached audience size. Called
// on customer change events; a failure on one segment is logged and does not
// stop the others.
func (s *SegmentService) RefreshAllSegments(ctx context.Context) {
	const pageSize = 100
	for page := 1; ; page++ {
		segments, err := s.segments.FindAll(ctx, page, pageSize)
		if err != nil {
			s.log.Error("failed to list segments for refresh", zap.Error(err))
			return
		}
		if len(segments) == 0 {
			return
		}
		for _, segment := range segments {
			if err := s.refresh(ctx, segment); err != nil {
				s.log.Error("failed to refresh segment audience",
					zap.String("segmentId", segment.ID.Hex()), zap.Error(err))
			}
		}
		if len(segments) < pageSize {
			return
		}
	}
}

func (s *SegmentService) refresh(ctx context.Context, segment *models.Segment) error {
	count, err := s.resolver.Count(ctx, segment.Rules())
	if err != nil {
		return err
	}
	now := time.Now()
	if err := s.segments.UpdateAudience(ctx, segment.ID, count, now); err != nil {
		return err
	}
	segment.AudienceSize = count
	segment.LastRefreshed = now
	return nil
}
