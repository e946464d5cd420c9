package services

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/repositories"
)

// CustomerService handles customer CRUD on behalf of the API and the bulk
// importer. Event publication (customer.created and friends) is the
// caller's responsibility.
type CustomerService struct {
	customers repositories.CustomerRepository
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(customers repositories.CustomerRepository) *CustomerService {
	return &CustomerService{customers: customers}
}

// CreateCustomer inserts a customer, enforcing email uniqueness.
func (s *CustomerService) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	_, err := s.customers.FindByEmail(ctx, customer.Email)
	if err == nil {
		return ErrDuplicateEmail
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	return s.customers.Create(ctx, customer)
}

// BulkCreateCustomers inserts a batch of customers, skipping rows whose
// email already exists. Returns the customers actually inserted.
func (s *CustomerService) BulkCreateCustomers(ctx context.Context, customers []*models.Customer) ([]*models.Customer, error) {
	fresh := make([]*models.Customer, 0, len(customers))
	for _, customer := range customers {
		_, err := s.customers.FindByEmail(ctx, customer.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		fresh = append(fresh, customer)
	}
	if err := s.customers.CreateMany(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// GetCustomerByID retrieves a customer by ID
func (s *CustomerService) GetCustomerByID(ctx context.Context, id primitive.ObjectID) (*models.Customer, error) {
	return s.customers.FindByID(ctx, id)
}

// GetAllCustomers retrieves customers with pagination
func (s *CustomerService) GetAllCustomers(ctx context.Context, page, limit int) ([]*models.Customer, error) {
	return s.customers.FindAll(ctx, page, limit)
}

// UpdateCustomer updates an existing customer
func (s *CustomerService) UpdateCustomer(ctx context.Context, customer *models.Customer) error {
	return s.customers.Update(ctx, customer)
}

// DeleteCustomer deletes a customer by ID
func (s *CustomerService) DeleteCustomer(ctx context.Context, id primitive.ObjectID) error {
	return s.customers.Delete(ctx, id)
}

// GetCustomerCount counts all customers
func (s *CustomerService) GetCustomerCount(ctx context.Context) (int64, error) {
	return s.customers.Count(ctx)
}
