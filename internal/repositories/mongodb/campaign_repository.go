package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/repositories"
)

// Compile-time check to ensure CampaignRepository implements the interface
var _ repositories.CampaignRepository = (*CampaignRepository)(nil)

// CampaignRepository handles MongoDB operations for Campaign. Status flips
// and stats updates use conditional updates and $inc so concurrent workers
// never lose increments.
type CampaignRepository struct {
	collection *mongo.Collection
}

// NewCampaignRepository creates a new CampaignRepository
func NewCampaignRepository(db *mongo.Database) *CampaignRepository {
	return &CampaignRepository{
		collection: db.Collection("campaigns"),
	}
}

// Create inserts a new campaign
func (r *CampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	campaign.ID = primitive.NewObjectID()
	campaign.CreatedAt = time.Now()
	campaign.UpdatedAt = time.Now()
	_, err := r.collection.InsertOne(ctx, campaign)
	return err
}

// FindByID finds a campaign by ID
func (r *CampaignRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&campaign)
	if err != nil {
		return nil, err // Includes mongo.ErrNoDocuments
	}
	return &campaign, nil
}

// FindAll retrieves campaigns with pagination
func (r *CampaignRepository) FindAll(ctx context.Context, page, limit int) ([]*models.Campaign, error) {
	return r.find(ctx, bson.M{}, page, limit)
}

// FindByStatus retrieves campaigns by status with pagination
func (r *CampaignRepository) FindByStatus(ctx context.Context, status string, page, limit int) ([]*models.Campaign, error) {
	return r.find(ctx, bson.M{"status": status}, page, limit)
}

func (r *CampaignRepository) find(ctx context.Context, filter bson.M, page, limit int) ([]*models.Campaign, error) {
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.M{"createdAt": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var campaigns []*models.Campaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, err
	}
	if campaigns == nil {
		campaigns = []*models.Campaign{}
	}
	return campaigns, nil
}

// Count counts all campaigns
func (r *CampaignRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// FindDueScheduled returns DRAFT campaigns whose scheduledAt is due
func (r *CampaignRepository) FindDueScheduled(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	filter := bson.M{
		"status":      models.CampaignStatusDraft,
		"scheduledAt": bson.M{"$lte": now},
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"scheduledAt": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var campaigns []*models.Campaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, err
	}
	if campaigns == nil {
		campaigns = []*models.Campaign{}
	}
	return campaigns, nil
}

// TryActivate flips DRAFT -> ACTIVE with a conditional update, so an
// overlapping scheduler tick cannot activate the same campaign twice
func (r *CampaignRepository) TryActivate(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	filter := bson.M{"_id": id, "status": models.CampaignStatusDraft}
	update := bson.M{"$set": bson.M{
		"status":    models.CampaignStatusActive,
		"sentAt":    at,
		"updatedAt": time.Now(),
	}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// SetAudience records the resolved audience size and seeds stats.pending
func (r *CampaignRepository) SetAudience(ctx context.Context, id primitive.ObjectID, size int64) error {
	update := bson.M{"$set": bson.M{
		"audienceSize":  size,
		"stats.pending": size,
		"updatedAt":     time.Now(),
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// MarkFailed moves the campaign to FAILED with a reason
func (r *CampaignRepository) MarkFailed(ctx context.Context, id primitive.ObjectID, reason string) error {
	update := bson.M{"$set": bson.M{
		"status":        models.CampaignStatusFailed,
		"failureReason": reason,
		"updatedAt":     time.Now(),
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// IncrementStats atomically adds batch counts and returns the updated campaign
func (r *CampaignRepository) IncrementStats(ctx context.Context, id primitive.ObjectID, delivered, failed int64) (*models.Campaign, error) {
	update := bson.M{
		"$inc": bson.M{
			"stats.delivered": delivered,
			"stats.failed":    failed,
		},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var campaign models.Campaign
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&campaign)
	if err != nil {
		return nil, err // Includes mongo.ErrNoDocuments
	}
	return &campaign, nil
}

// UpdateDerivedStats writes the recomputed pending count and percentages
func (r *CampaignRepository) UpdateDerivedStats(ctx context.Context, id primitive.ObjectID, stats models.CampaignStats) error {
	update := bson.M{"$set": bson.M{
		"stats.pending":             stats.Pending,
		"stats.deliveredPercentage": stats.DeliveredPercentage,
		"stats.failedPercentage":    stats.FailedPercentage,
		"updatedAt":                 time.Now(),
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// TryComplete flips ACTIVE -> COMPLETED once every log has a terminal status
func (r *CampaignRepository) TryComplete(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	filter := bson.M{
		"_id":    id,
		"status": models.CampaignStatusActive,
		"$expr": bson.M{"$gte": bson.A{
			bson.M{"$add": bson.A{"$stats.delivered", "$stats.failed"}},
			"$audienceSize",
		}},
	}
	update := bson.M{"$set": bson.M{
		"status":      models.CampaignStatusCompleted,
		"completedAt": at,
		"updatedAt":   time.Now(),
	}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}
