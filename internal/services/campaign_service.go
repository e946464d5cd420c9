package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/repositories"
)

// logInsertBatchSize bounds the size of each delivery-log InsertMany.
const logInsertBatchSize = 500

// ReceiptUpdate is an externally sourced delivery confirmation addressed by
// vendor message id.
type ReceiptUpdate struct {
	MessageID    string
	Status       string // DELIVERED or FAILED
	ErrorMessage string
}

// CampaignService orchestrates the campaign delivery lifecycle: creation
// validation, activation (audience resolution + bulk log creation), stats
// aggregation, and completion detection.
type CampaignService struct {
	campaigns repositories.CampaignRepository
	segments  repositories.SegmentRepository
	logs      repositories.CommunicationLogRepository
	resolver  *AudienceResolver
	log       *zap.Logger
	now       func() time.Time
}

// NewCampaignService creates a new CampaignService
func NewCampaignService(
	campaigns repositories.CampaignRepository,
	segments repositories.SegmentRepository,
	logs repositories.CommunicationLogRepository,
	resolver *AudienceResolver,
	log *zap.Logger,
) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		segments:  segments,
		logs:      logs,
		resolver:  resolver,
		log:       log,
		now:       time.Now,
	}
}

// CreateCampaign validates and stores a new campaign in DRAFT. The audience
// source is checked here, at creation time: a campaign with neither a segment
// reference nor inline rules (or with both) is rejected synchronously and
// never reaches the delivery path.
func (s *CampaignService) CreateCampaign(ctx context.Context, campaign *models.Campaign) error {
	if !campaign.HasRuleSource() {
		return ErrNoRuleSource
	}
	if campaign.SegmentID != nil {
		if _, err := s.segments.FindByID(ctx, *campaign.SegmentID); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrSegmentNotFound
			}
			return err
		}
	}
	if campaign.Rules != nil {
		// Surface malformed inline rules to the caller now, not at delivery.
		if _, err := s.resolver.Count(ctx, *campaign.Rules); err != nil {
			return err
		}
	}

	campaign.Status = models.CampaignStatusDraft
	campaign.Stats = models.CampaignStats{}
	campaign.AudienceSize = 0
	return s.campaigns.Create(ctx, campaign)
}

// HandleCampaignCreated reacts to a campaign.created event: campaigns not
// scheduled in the future are activated immediately; scheduled ones wait for
// the scheduler.
func (s *CampaignService) HandleCampaignCreated(ctx context.Context, id primitive.ObjectID) error {
	campaign, err := s.campaigns.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if campaign.ScheduledAt != nil && campaign.ScheduledAt.After(s.now()) {
		return nil
	}
	return s.Activate(ctx, id)
}

// Activate moves a DRAFT campaign to ACTIVE, resolves its audience, and
// creates one PENDING communication log per matched customer with the
// message personalized up front. The status flip is conditional, so a
// campaign picked up by two overlapping ticks is activated exactly once.
func (s *CampaignService) Activate(ctx context.Context, id primitive.ObjectID) error {
	activated, err := s.campaigns.TryActivate(ctx, id, s.now())
	if err != nil {
		return err
	}
	if !activated {
		return nil
	}

	campaign, err := s.campaigns.FindByID(ctx, id)
	if err != nil {
		return err
	}

	ruleSet, err := s.ruleSource(ctx, campaign)
	if err != nil {
		return s.failCampaign(ctx, campaign, err)
	}

	var (
		batch []*models.CommunicationLog
		count int64
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.logs.CreateMany(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	err = s.resolver.Each(ctx, ruleSet, func(customer *models.Customer) error {
		batch = append(batch, &models.CommunicationLog{
			CampaignID: campaign.ID,
			CustomerID: customer.ID,
			Recipient:  customer.Email,
			Message:    personalize(campaign.Message, customer.Name),
			Status:     models.LogStatusPending,
		})
		count++
		if len(batch) >= logInsertBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return s.failCampaign(ctx, campaign, err)
	}
	if err := flush(); err != nil {
		return s.failCampaign(ctx, campaign, err)
	}

	if err := s.campaigns.SetAudience(ctx, id, count); err != nil {
		return err
	}
	s.log.Info("campaign activated",
		zap.String("campaignId", id.Hex()), zap.Int64("audienceSize", count))

	if count == 0 {
		// Nothing to deliver: the campaign completes without a worker tick.
		if _, err := s.campaigns.TryComplete(ctx, id, s.now()); err != nil {
			return err
		}
	}
	return nil
}

// ActivateDue activates every DRAFT campaign whose schedule has come due.
// Returns how many campaigns this call activated.
func (s *CampaignService) ActivateDue(ctx context.Context) (int, error) {
	due, err := s.campaigns.FindDueScheduled(ctx, s.now())
	if err != nil {
		return 0, err
	}
	activated := 0
	for _, campaign := range due {
		if err := s.Activate(ctx, campaign.ID); err != nil {
			s.log.Error("failed to activate scheduled campaign",
				zap.String("campaignId", campaign.ID.Hex()), zap.Error(err))
			continue
		}
		activated++
	}
	return activated, nil
}

// ApplyBatchStats applies one worker batch's per-campaign counts as a single
// atomic increment, recomputes the derived fields, and re-checks completion.
func (s *CampaignService) ApplyBatchStats(ctx context.Context, campaignID primitive.ObjectID, delivered, failed int64) error {
	if delivered == 0 && failed == 0 {
		return nil
	}
	campaign, err := s.campaigns.IncrementStats(ctx, campaignID, delivered, failed)
	if err != nil {
		return err
	}

	stats := campaign.Stats
	stats.Pending = campaign.AudienceSize - stats.Delivered - stats.Failed
	if stats.Pending < 0 {
		stats.Pending = 0
	}
	if campaign.AudienceSize > 0 {
		stats.DeliveredPercentage = float64(stats.Delivered) / float64(campaign.AudienceSize) * 100
		stats.FailedPercentage = float64(stats.Failed) / float64(campaign.AudienceSize) * 100
	}
	if err := s.campaigns.UpdateDerivedStats(ctx, campaignID, stats); err != nil {
		return err
	}

	if stats.Delivered+stats.Failed >= campaign.AudienceSize {
		completed, err := s.campaigns.TryComplete(ctx, campaignID, s.now())
		if err != nil {
			return err
		}
		if completed {
			s.log.Info("campaign completed",
				zap.String("campaignId", campaignID.Hex()),
				zap.Int64("delivered", stats.Delivered),
				zap.Int64("failed", stats.Failed))
		}
	}
	return nil
}

// ApplyReceipt applies an externally sourced delivery receipt the same way
// the worker applies its own send results. Terminal log statuses are never
// rewritten.
func (s *CampaignService) ApplyReceipt(ctx context.Context, receipt ReceiptUpdate) error {
	log, err := s.logs.FindByVendorMessageID(ctx, receipt.MessageID)
	if err != nil {
		return err
	}

	switch receipt.Status {
	case "DELIVERED":
		if log.Status != models.LogStatusSent {
			return nil
		}
		return s.logs.MarkDelivered(ctx, log.ID, s.now())

	case "FAILED":
		switch log.Status {
		case models.LogStatusPending:
			claimed, err := s.logs.Claim(ctx, log.ID)
			if err != nil || !claimed {
				return err
			}
		case models.LogStatusProcessing:
		default:
			return nil
		}
		if err := s.logs.MarkResult(ctx, log.ID, models.LogStatusFailed, s.now(), "", receipt.ErrorMessage); err != nil {
			return err
		}
		return s.ApplyBatchStats(ctx, log.CampaignID, 0, 1)
	}
	return nil
}

// AppendEngagement appends an engagement callback (open, click, reply) to
// the log's vendor metadata. No stats side effect.
func (s *CampaignService) AppendEngagement(ctx context.Context, messageID string, event models.EngagementEvent) error {
	log, err := s.logs.FindByVendorMessageID(ctx, messageID)
	if err != nil {
		return err
	}
	return s.logs.AppendEvent(ctx, log.ID, event)
}

// GetCampaignByID retrieves a campaign by ID
func (s *CampaignService) GetCampaignByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	return s.campaigns.FindByID(ctx, id)
}

// GetAllCampaigns retrieves campaigns with pagination
func (s *CampaignService) GetAllCampaigns(ctx context.Context, page, limit int) ([]*models.Campaign, error) {
	return s.campaigns.FindAll(ctx, page, limit)
}

// GetCampaignsByStatus retrieves campaigns by status with pagination
func (s *CampaignService) GetCampaignsByStatus(ctx context.Context, status string, page, limit int) ([]*models.Campaign, error) {
	return s.campaigns.FindByStatus(ctx, status, page, limit)
}

// GetCampaignCount counts all campaigns
func (s *CampaignService) GetCampaignCount(ctx context.Context) (int64, error) {
	return s.campaigns.Count(ctx)
}

// GetCampaignLogs retrieves a campaign's communication logs with pagination
func (s *CampaignService) GetCampaignLogs(ctx context.Context, campaignID primitive.ObjectID, page, limit int) ([]*models.CommunicationLog, error) {
	return s.logs.FindByCampaignID(ctx, campaignID, page, limit)
}

// ruleSource returns the campaign's rule set, resolving a segment reference
// if present.
func (s *CampaignService) ruleSource(ctx context.Context, campaign *models.Campaign) (models.RuleSet, error) {
	if campaign.SegmentID != nil {
		segment, err := s.segments.FindByID(ctx, *campaign.SegmentID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return models.RuleSet{}, ErrSegmentNotFound
			}
			return models.RuleSet{}, err
		}
		return segment.Rules(), nil
	}
	if campaign.Rules != nil {
		return *campaign.Rules, nil
	}
	return models.RuleSet{}, ErrNoRuleSource
}

// failCampaign records an unrecoverable activation failure.
func (s *CampaignService) failCampaign(ctx context.Context, campaign *models.Campaign, cause error) error {
	resErr := &AudienceResolutionError{CampaignID: campaign.ID.Hex(), Err: cause}
	s.log.Error("campaign failed", zap.String("campaignId", campaign.ID.Hex()), zap.Error(cause))
	if err := s.campaigns.MarkFailed(ctx, campaign.ID, cause.Error()); err != nil {
		return err
	}
	return resErr
}

// personalize substitutes the {{name}} placeholder. Done once, when logs are
// created, never at send time.
func personalize(template, name string) string {
	return strings.ReplaceAll(template, "{{name}}", name)
}
