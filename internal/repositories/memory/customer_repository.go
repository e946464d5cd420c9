// Package memory provides in-memory implementations of the repository
// interfaces. They mirror the MongoDB implementations' semantics (including
// conditional updates) behind a mutex, and back the test suite and the
// store-less local mode.
package memory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/repositories"
	"github.com/pulsecrm/pulse-crm-backend/internal/rules"
)

var _ repositories.CustomerRepository = (*CustomerRepository)(nil)

// CustomerRepository is an in-memory CustomerRepository.
type CustomerRepository struct {
	mu        sync.RWMutex
	customers map[primitive.ObjectID]*models.Customer
	order     []primitive.ObjectID
}

// NewCustomerRepository creates an empty in-memory customer repository.
func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{customers: make(map[primitive.ObjectID]*models.Customer)}
}

func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	customer.ID = primitive.NewObjectID()
	customer.CreatedAt = time.Now()
	customer.UpdatedAt = time.Now()
	clone := *customer
	r.customers[customer.ID] = &clone
	r.order = append(r.order, customer.ID)
	return nil
}

func (r *CustomerRepository) CreateMany(ctx context.Context, customers []*models.Customer) error {
	for _, customer := range customers {
		if err := r.Create(ctx, customer); err != nil {
			return err
		}
	}
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	customer, ok := r.customers[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	clone := *customer
	return &clone, nil
}

func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, customer := range r.customers {
		if customer.Email == email {
			clone := *customer
			return &clone, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *CustomerRepository) FindAll(ctx context.Context, page, limit int) ([]*models.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	start := (page - 1) * limit
	customers := []*models.Customer{}
	for i := start; i < len(r.order) && i < start+limit; i++ {
		clone := *r.customers[r.order[i]]
		customers = append(customers, &clone)
	}
	return customers, nil
}

func (r *CustomerRepository) Update(ctx context.Context, customer *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[customer.ID]; !ok {
		return mongo.ErrNoDocuments
	}
	customer.UpdatedAt = time.Now()
	clone := *customer
	r.customers[customer.ID] = &clone
	return nil
}

func (r *CustomerRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.customers, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *CustomerRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.customers)), nil
}

func (r *CustomerRepository) CountMatching(ctx context.Context, pred *rules.Predicate) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, id := range r.order {
		if pred.Matches(r.customers[id]) {
			count++
		}
	}
	return count, nil
}

func (r *CustomerRepository) FindMatching(ctx context.Context, pred *rules.Predicate, limit int64) ([]*models.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	customers := []*models.Customer{}
	for _, id := range r.order {
		if int64(len(customers)) >= limit {
			break
		}
		if pred.Matches(r.customers[id]) {
			clone := *r.customers[id]
			customers = append(customers, &clone)
		}
	}
	return customers, nil
}

func (r *CustomerRepository) EachMatching(ctx context.Context, pred *rules.Predicate, fn func(*models.Customer) error) error {
	r.mu.RLock()
	matched := []*models.Customer{}
	for _, id := range r.order {
		if pred.Matches(r.customers[id]) {
			clone := *r.customers[id]
			matched = append(matched, &clone)
		}
	}
	r.mu.RUnlock()

	for _, customer := range matched {
		if err := fn(customer); err != nil {
			return err
		}
	}
	return nil
}
