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
	"github.com/pulsecrm/pulse-crm-backend/internal/rules"
)

// Compile-time check to ensure CustomerRepository implements the interface
var _ repositories.CustomerRepository = (*CustomerRepository)(nil)

// CustomerRepository handles MongoDB operations for Customer
type CustomerRepository struct {
	collection *mongo.Collection
}

// NewCustomerRepository creates a new CustomerRepository
func NewCustomerRepository(db *mongo.Database) *CustomerRepository {
	return &CustomerRepository{
		collection: db.Collection("customers"),
	}
}

// Create inserts a new customer
func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	customer.ID = primitive.NewObjectID()
	customer.CreatedAt = time.Now()
	customer.UpdatedAt = time.Now()
	_, err := r.collection.InsertOne(ctx, customer)
	return err
}

// CreateMany inserts a batch of customers
func (r *CustomerRepository) CreateMany(ctx context.Context, customers []*models.Customer) error {
	if len(customers) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(customers))
	now := time.Now()
	for _, customer := range customers {
		customer.ID = primitive.NewObjectID()
		customer.CreatedAt = now
		customer.UpdatedAt = now
		docs = append(docs, customer)
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

// FindByID finds a customer by ID
func (r *CustomerRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Customer, error) {
	var customer models.Customer
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&customer)
	if err != nil {
		return nil, err // Includes mongo.ErrNoDocuments
	}
	return &customer, nil
}

// FindByEmail finds a customer by email
func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customer models.Customer
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&customer)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindAll retrieves customers with pagination
func (r *CustomerRepository) FindAll(ctx context.Context, page, limit int) ([]*models.Customer, error) {
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.M{"createdAt": -1})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var customers []*models.Customer
	if err := cursor.All(ctx, &customers); err != nil {
		return nil, err
	}
	if customers == nil {
		customers = []*models.Customer{}
	}
	return customers, nil
}

// Update updates an existing customer
func (r *CustomerRepository) Update(ctx context.Context, customer *models.Customer) error {
	customer.UpdatedAt = time.Now()
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": customer.ID}, bson.M{"$set": customer})
	return err
}

// Delete deletes a customer by ID
func (r *CustomerRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Count counts all customers
func (r *CustomerRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// CountMatching counts customers satisfying a compiled predicate
func (r *CustomerRepository) CountMatching(ctx context.Context, pred *rules.Predicate) (int64, error) {
	return r.collection.CountDocuments(ctx, pred.MongoFilter())
}

// FindMatching retrieves up to limit customers satisfying a compiled predicate
func (r *CustomerRepository) FindMatching(ctx context.Context, pred *rules.Predicate, limit int64) ([]*models.Customer, error) {
	opts := options.Find().SetLimit(limit)
	cursor, err := r.collection.Find(ctx, pred.MongoFilter(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var customers []*models.Customer
	if err := cursor.All(ctx, &customers); err != nil {
		return nil, err
	}
	if customers == nil {
		customers = []*models.Customer{}
	}
	return customers, nil
}

// EachMatching streams every customer satisfying a compiled predicate through fn
func (r *CustomerRepository) EachMatching(ctx context.Context, pred *rules.Predicate, fn func(*models.Customer) error) error {
	cursor, err := r.collection.Find(ctx, pred.MongoFilter())
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var customer models.Customer
		if err := cursor.Decode(&customer); err != nil {
			return err
		}
		if err := fn(&customer); err != nil {
			return err
		}
	}
	return cursor.Err()
}
