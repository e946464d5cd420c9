package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/events"
	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/services"
)

// CustomerHandler handles customer-related HTTP requests. Mutations publish
// customer.* events so the worker process can refresh segment caches.
type CustomerHandler struct {
	customerService *services.CustomerService
	bus             events.Bus
	log             *zap.Logger
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(customerService *services.CustomerService, bus events.Bus, log *zap.Logger) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
		bus:             bus,
		log:             log,
	}
}

// CreateCustomer handles POST /customers
func (h *CustomerHandler) CreateCustomer(c *gin.Context) {
	var customer models.Customer
	if err := c.ShouldBindJSON(&customer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.customerService.CreateCustomer(c.Request.Context(), &customer); err != nil {
		if errors.Is(err, services.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"error": "A customer with this email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create customer: " + err.Error()})
		return
	}

	h.publish(c, events.ChannelCustomerCreated, customer.ID)
	c.JSON(http.StatusCreated, customer)
}

// BulkCreateCustomers handles POST /customers/bulk
func (h *CustomerHandler) BulkCreateCustomers(c *gin.Context) {
	var customers []*models.Customer
	if err := c.ShouldBindJSON(&customers); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inserted, err := h.customerService.BulkCreateCustomers(c.Request.Context(), customers)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import customers: " + err.Error()})
		return
	}

	ids := make([]string, 0, len(inserted))
	for _, customer := range inserted {
		ids = append(ids, customer.ID.Hex())
	}
	if err := h.bus.Publish(c.Request.Context(), events.ChannelCustomerBulkCreate, events.CustomerChanged{CustomerIDs: ids}); err != nil {
		h.log.Error("failed to publish customer.bulk.create", zap.Error(err))
	}

	c.JSON(http.StatusCreated, gin.H{"imported": len(inserted), "skipped": len(customers) - len(inserted)})
}

// GetCustomerByID handles GET /customers/:id
func (h *CustomerHandler) GetCustomerByID(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	customer, err := h.customerService.GetCustomerByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}

	c.JSON(http.StatusOK, customer)
}

// GetAllCustomers handles GET /customers
func (h *CustomerHandler) GetAllCustomers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	customers, err := h.customerService.GetAllCustomers(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get customers: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, customers)
}

// UpdateCustomer handles PUT /customers/:id
func (h *CustomerHandler) UpdateCustomer(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var customer models.Customer
	if err := c.ShouldBindJSON(&customer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	customer.ID = id

	if err := h.customerService.UpdateCustomer(c.Request.Context(), &customer); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update customer: " + err.Error()})
		return
	}

	h.publish(c, events.ChannelCustomerUpdated, id)
	c.JSON(http.StatusOK, customer)
}

// DeleteCustomer handles DELETE /customers/:id
func (h *CustomerHandler) DeleteCustomer(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	if err := h.customerService.DeleteCustomer(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete customer: " + err.Error()})
		return
	}

	h.publish(c, events.ChannelCustomerDeleted, id)
	c.JSON(http.StatusOK, gin.H{"message": "Customer deleted successfully"})
}

// GetCustomerCount handles GET /customers/count
func (h *CustomerHandler) GetCustomerCount(c *gin.Context) {
	count, err := h.customerService.GetCustomerCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get customer count: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// publish emits a single-customer change event. Publish failures do not fail
// the request; the store is already updated.
func (h *CustomerHandler) publish(c *gin.Context, channel string, id primitive.ObjectID) {
	err := h.bus.Publish(c.Request.Context(), channel, events.CustomerChanged{CustomerIDs: []string{id.Hex()}})
	if err != nil {
		h.log.Error("failed to publish customer event",
			zap.String("channel", channel), zap.Error(err))
	}
}
