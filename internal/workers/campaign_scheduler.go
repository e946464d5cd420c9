package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/services"
)

// CampaignScheduler promotes scheduled DRAFT campaigns whose scheduledAt has
// passed. Activation itself is guarded by a conditional status flip, so a
// scheduler and an explicit activate request racing on the same campaign
// resolve to exactly one activation.
type CampaignScheduler struct {
	campaigns *services.CampaignService
	log       *zap.Logger
	interval  time.Duration
}

// NewCampaignScheduler creates a new CampaignScheduler
func NewCampaignScheduler(campaigns *services.CampaignService, log *zap.Logger, interval time.Duration) *CampaignScheduler {
	return &CampaignScheduler{
		campaigns: campaigns,
		log:       log,
		interval:  interval,
	}
}

// Run ticks on a fixed interval until the context is cancelled.
func (s *CampaignScheduler) Run(ctx context.Context) {
	s.log.Info("campaign scheduler started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("campaign scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.log.Error("scheduler tick failed", zap.Error(err))
			}
		}
	}
}

// Tick activates every campaign that is due as of now and returns how many
// it promoted.
func (s *CampaignScheduler) Tick(ctx context.Context) (int, error) {
	return s.campaigns.ActivateDue(ctx)
}
