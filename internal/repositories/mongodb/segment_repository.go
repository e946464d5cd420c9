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

// Compile-time check to ensure SegmentRepository implements the interface
var _ repositories.SegmentRepository = (*SegmentRepository)(nil)

// SegmentRepository handles MongoDB operations for Segment
type SegmentRepository struct {
	collection *mongo.Collection
}

// NewSegmentRepository creates a new SegmentRepository
func NewSegmentRepository(db *mongo.Database) *SegmentRepository {
	return &SegmentRepository{
		collection: db.Collection("segments"),
	}
}

// Create inserts a new segment
func (r *SegmentRepository) Create(ctx context.Context, segment *models.Segment) error {
	segment.ID = primitive.NewObjectID()
	segment.CreatedAt = time.Now()
	segment.UpdatedAt = time.Now()
	_, err := r.collection.InsertOne(ctx, segment)
	return err
}

// FindByID finds a segment by ID
func (r *SegmentRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Segment, error) {
	var segment models.Segment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&segment)
	if err != nil {
		return nil, err // Includes mongo.ErrNoDocuments
	}
	return &segment, nil
}

// FindAll retrieves segments with pagination
func (r *SegmentRepository) FindAll(ctx context.Context, page, limit int) ([]*models.Segment, error) {
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.M{"createdAt": -1})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var segments []*models.Segment
	if err := cursor.All(ctx, &segments); err != nil {
		return nil, err
	}
	if segments == nil {
		segments = []*models.Segment{}
	}
	return segments, nil
}

// Update updates an existing segment
func (r *SegmentRepository) Update(ctx context.Context, segment *models.Segment) error {
	segment.UpdatedAt = time.Now()
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": segment.ID}, bson.M{"$set": segment})
	return err
}

// Delete deletes a segment by ID
func (r *SegmentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Count counts all segments
func (r *SegmentRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// UpdateAudience refreshes the cached audience size for a segment
func (r *SegmentRepository) UpdateAudience(ctx context.Context, id primitive.ObjectID, size int64, refreshedAt time.Time) error {
	update := bson.M{"$set": bson.M{
		"audienceSize":  size,
		"lastRefreshed": refreshedAt,
		"updatedAt":     time.Now(),
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}
