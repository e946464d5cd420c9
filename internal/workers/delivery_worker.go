// Package workers contains the timer-driven background loops: the delivery
// worker that drains pending communication logs, and the scheduler that
// promotes due campaigns.
package workers

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/repositories"
	"github.com/pulsecrm/pulse-crm-backend/internal/services"
	"github.com/pulsecrm/pulse-crm-backend/pkg/gateway"
)

// DeliveryWorker polls PENDING communication logs in bounded batches, sends
// each through the vendor gateway, and applies per-campaign stats as a
// single increment per batch. A log is claimed (PENDING -> PROCESSING)
// before its send, so overlapping ticks or a second worker never process the
// same log twice.
type DeliveryWorker struct {
	logs      repositories.CommunicationLogRepository
	campaigns *services.CampaignService
	gateway   gateway.Gateway
	log       *zap.Logger

	batchSize   int64
	interval    time.Duration
	sendTimeout time.Duration
}

// NewDeliveryWorker creates a new DeliveryWorker
func NewDeliveryWorker(
	logs repositories.CommunicationLogRepository,
	campaigns *services.CampaignService,
	gw gateway.Gateway,
	log *zap.Logger,
	batchSize int64,
	interval, sendTimeout time.Duration,
) *DeliveryWorker {
	return &DeliveryWorker{
		logs:        logs,
		campaigns:   campaigns,
		gateway:     gw,
		log:         log,
		batchSize:   batchSize,
		interval:    interval,
		sendTimeout: sendTimeout,
	}
}

// Run ticks on a fixed interval until the context is cancelled. A failed
// tick is logged and does not stop the loop; remaining PENDING logs are
// picked up by the next tick.
func (w *DeliveryWorker) Run(ctx context.Context) {
	w.log.Info("delivery worker started",
		zap.Int64("batchSize", w.batchSize), zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("delivery worker stopped")
			return
		case <-ticker.C:
			if _, err := w.Tick(ctx); err != nil {
				w.log.Error("delivery tick failed", zap.Error(err))
			}
		}
	}
}

// Tick processes one batch of pending logs and returns how many logs this
// tick moved to a terminal status.
func (w *DeliveryWorker) Tick(ctx context.Context) (int, error) {
	pending, err := w.logs.FindPending(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	// Group by campaign so each campaign gets one stats increment per tick.
	byCampaign := make(map[primitive.ObjectID][]*models.CommunicationLog)
	var order []primitive.ObjectID
	for _, entry := range pending {
		if _, seen := byCampaign[entry.CampaignID]; !seen {
			order = append(order, entry.CampaignID)
		}
		byCampaign[entry.CampaignID] = append(byCampaign[entry.CampaignID], entry)
	}

	processed := 0
	for _, campaignID := range order {
		var delivered, failed int64
		for _, entry := range byCampaign[campaignID] {
			claimed, err := w.logs.Claim(ctx, entry.ID)
			if err != nil {
				w.log.Error("failed to claim log",
					zap.String("logId", entry.ID.Hex()), zap.Error(err))
				continue
			}
			if !claimed {
				// Another tick or worker took it.
				continue
			}

			status, vendorMessageID, errMessage := w.send(ctx, entry)
			if err := w.logs.MarkResult(ctx, entry.ID, status, time.Now(), vendorMessageID, errMessage); err != nil {
				w.log.Error("failed to record send result",
					zap.String("logId", entry.ID.Hex()), zap.Error(err))
				continue
			}
			if status == models.LogStatusSent {
				delivered++
			} else {
				failed++
			}
			processed++
		}

		if err := w.campaigns.ApplyBatchStats(ctx, campaignID, delivered, failed); err != nil {
			w.log.Error("failed to apply campaign stats",
				zap.String("campaignId", campaignID.Hex()), zap.Error(err))
		}
	}
	return processed, nil
}

// send performs one vendor call bounded by the send timeout. Any failure,
// including a timeout, is a FAILED result for this log only; it is never
// retried and never escalated to the campaign.
func (w *DeliveryWorker) send(ctx context.Context, entry *models.CommunicationLog) (status, vendorMessageID, errMessage string) {
	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()

	result, err := w.gateway.Send(sendCtx, entry.ID.Hex(), entry.Recipient, entry.Message)
	if err != nil {
		return models.LogStatusFailed, "", err.Error()
	}
	if !result.Success {
		message := result.Error
		if message == "" {
			message = "vendor rejected message"
		}
		return models.LogStatusFailed, result.VendorMessageID, message
	}
	return models.LogStatusSent, result.VendorMessageID, ""
}
