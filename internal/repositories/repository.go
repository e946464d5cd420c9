package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/rules"
)

// CustomerRepository handles storage operations for customers. Matching
// methods take a compiled predicate so the Mongo implementation can push the
// filter down while the in-memory implementation evaluates it directly.
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	CreateMany(ctx context.Context, customers []*models.Customer) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Customer, error)
	FindByEmail(ctx context.Context, email string) (*models.Customer, error)
	FindAll(ctx context.Context, page, limit int) ([]*models.Customer, error)
	Update(ctx context.Context, customer *models.Customer) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	Count(ctx context.Context) (int64, error)

	CountMatching(ctx context.Context, pred *rules.Predicate) (int64, error)
	FindMatching(ctx context.Context, pred *rules.Predicate, limit int64) ([]*models.Customer, error)
	// EachMatching streams every matching customer through fn; a non-nil
	// error from fn aborts the iteration.
	EachMatching(ctx context.Context, pred *rules.Predicate, fn func(*models.Customer) error) error
}

// SegmentRepository handles storage operations for segments.
type SegmentRepository interface {
	Create(ctx context.Context, segment *models.Segment) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Segment, error)
	FindAll(ctx context.Context, page, limit int) ([]*models.Segment, error)
	Update(ctx context.Context, segment *models.Segment) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	Count(ctx context.Context) (int64, error)
	// UpdateAudience refreshes the cached audience size.
	UpdateAudience(ctx context.Context, id primitive.ObjectID, size int64, refreshedAt time.Time) error
}

// CampaignRepository handles storage operations for campaigns. Status flips
// and stats updates are conditional/atomic store operations, never
// load-mutate-save.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)
	FindAll(ctx context.Context, page, limit int) ([]*models.Campaign, error)
	FindByStatus(ctx context.Context, status string, page, limit int) ([]*models.Campaign, error)
	Count(ctx context.Context) (int64, error)

	// FindDueScheduled returns DRAFT campaigns whose scheduledAt is due.
	FindDueScheduled(ctx context.Context, now time.Time) ([]*models.Campaign, error)
	// TryActivate flips DRAFT -> ACTIVE and stamps sentAt. Returns false if
	// the campaign was not in DRAFT (e.g. claimed by an overlapping tick).
	TryActivate(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
	// SetAudience records the resolved audience size and seeds stats.pending.
	SetAudience(ctx context.Context, id primitive.ObjectID, size int64) error
	// MarkFailed moves the campaign to FAILED with a reason.
	MarkFailed(ctx context.Context, id primitive.ObjectID, reason string) error
	// IncrementStats atomically adds batch counts to stats.delivered and
	// stats.failed and returns the campaign as updated.
	IncrementStats(ctx context.Context, id primitive.ObjectID, delivered, failed int64) (*models.Campaign, error)
	// UpdateDerivedStats writes the recomputed pending count and percentages.
	UpdateDerivedStats(ctx context.Context, id primitive.ObjectID, stats models.CampaignStats) error
	// TryComplete flips ACTIVE -> COMPLETED iff delivered + failed >=
	// audienceSize. Returns whether the transition happened.
	TryComplete(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
}

// CommunicationLogRepository handles storage operations for per-delivery
// communication logs.
type CommunicationLogRepository interface {
	CreateMany(ctx context.Context, logs []*models.CommunicationLog) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommunicationLog, error)
	FindByCampaignID(ctx context.Context, campaignID primitive.ObjectID, page, limit int) ([]*models.CommunicationLog, error)
	FindByVendorMessageID(ctx context.Context, messageID string) (*models.CommunicationLog, error)
	CountByStatus(ctx context.Context, campaignID primitive.ObjectID, status string) (int64, error)

	// FindPending returns up to limit PENDING logs across all campaigns,
	// oldest first.
	FindPending(ctx context.Context, limit int64) ([]*models.CommunicationLog, error)
	// Claim flips PENDING -> PROCESSING for one log. Returns false if the
	// log was already claimed by another tick.
	Claim(ctx context.Context, id primitive.ObjectID) (bool, error)
	// MarkResult records the terminal outcome of a claimed log.
	MarkResult(ctx context.Context, id primitive.ObjectID, status string, sentAt time.Time, vendorMessageID, errorMessage string) error
	// MarkDelivered stamps a vendor delivery confirmation on a SENT log.
	MarkDelivered(ctx context.Context, id primitive.ObjectID, at time.Time) error
	// AppendEvent appends an engagement event to the log's vendor metadata.
	AppendEvent(ctx context.Context, id primitive.ObjectID, event models.EngagementEvent) error
}

// AdminUserRepository handles storage operations for admin accounts.
type AdminUserRepository interface {
	Create(ctx context.Context, user *models.AdminUser) error
	FindByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.AdminUser, error)
}
