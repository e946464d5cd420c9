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

// Compile-time check to ensure CommunicationLogRepository implements the interface
var _ repositories.CommunicationLogRepository = (*CommunicationLogRepository)(nil)

// CommunicationLogRepository handles MongoDB operations for CommunicationLog
type CommunicationLogRepository struct {
	collection *mongo.Collection
}

// NewCommunicationLogRepository creates a new CommunicationLogRepository
func NewCommunicationLogRepository(db *mongo.Database) *CommunicationLogRepository {
	return &CommunicationLogRepository{
		collection: db.Collection("communication_logs"),
	}
}

// CreateMany inserts the delivery logs for a freshly activated campaign
func (r *CommunicationLogRepository) CreateMany(ctx context.Context, logs []*models.CommunicationLog) error {
	if len(logs) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(logs))
	now := time.Now()
	for _, log := range logs {
		log.ID = primitive.NewObjectID()
		log.CreatedAt = now
		log.UpdatedAt = now
		docs = append(docs, log)
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

// FindByID finds a log by ID
func (r *CommunicationLogRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommunicationLog, error) {
	var log models.CommunicationLog
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&log)
	if err != nil {
		return nil, err // Includes mongo.ErrNoDocuments
	}
	return &log, nil
}

// FindByCampaignID retrieves logs for a campaign with pagination
func (r *CommunicationLogRepository) FindByCampaignID(ctx context.Context, campaignID primitive.ObjectID, page, limit int) ([]*models.CommunicationLog, error) {
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.M{"createdAt": 1})

	cursor, err := r.collection.Find(ctx, bson.M{"campaignId": campaignID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []*models.CommunicationLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []*models.CommunicationLog{}
	}
	return logs, nil
}

// FindByVendorMessageID finds the log a vendor receipt refers to
func (r *CommunicationLogRepository) FindByVendorMessageID(ctx context.Context, messageID string) (*models.CommunicationLog, error) {
	var log models.CommunicationLog
	err := r.collection.FindOne(ctx, bson.M{"vendor.messageId": messageID}).Decode(&log)
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// CountByStatus counts a campaign's logs in a given status
func (r *CommunicationLogRepository) CountByStatus(ctx context.Context, campaignID primitive.ObjectID, status string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"campaignId": campaignID, "status": status})
}

// FindPending returns up to limit PENDING logs across all campaigns, oldest first
func (r *CommunicationLogRepository) FindPending(ctx context.Context, limit int64) ([]*models.CommunicationLog, error) {
	opts := options.Find().
		SetLimit(limit).
		SetSort(bson.M{"createdAt": 1})

	cursor, err := r.collection.Find(ctx, bson.M{"status": models.LogStatusPending}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []*models.CommunicationLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []*models.CommunicationLog{}
	}
	return logs, nil
}

// Claim flips PENDING -> PROCESSING for one log. The conditional filter makes
// the claim exclusive: a log already taken by another tick is left alone.
func (r *CommunicationLogRepository) Claim(ctx context.Context, id primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": id, "status": models.LogStatusPending}
	update := bson.M{"$set": bson.M{
		"status":    models.LogStatusProcessing,
		"updatedAt": time.Now(),
	}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// MarkResult records the terminal outcome of a claimed log
func (r *CommunicationLogRepository) MarkResult(ctx context.Context, id primitive.ObjectID, status string, sentAt time.Time, vendorMessageID, errorMessage string) error {
	set := bson.M{
		"status":    status,
		"sentAt":    sentAt,
		"updatedAt": time.Now(),
	}
	if vendorMessageID != "" {
		set["vendor.messageId"] = vendorMessageID
	}
	if errorMessage != "" {
		set["errorMessage"] = errorMessage
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

// MarkDelivered stamps a vendor delivery confirmation on a SENT log
func (r *CommunicationLogRepository) MarkDelivered(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"deliveredAt":        at,
		"vendor.deliveredAt": at,
		"updatedAt":          time.Now(),
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// AppendEvent appends an engagement event to the log's vendor metadata
func (r *CommunicationLogRepository) AppendEvent(ctx context.Context, id primitive.ObjectID, event models.EngagementEvent) error {
	update := bson.M{
		"$push": bson.M{"vendor.events": event},
		"$set":  bson.M{"updatedAt": time.Now()},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}
