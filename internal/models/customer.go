package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Customer represents a CRM customer record. It is mutated by the CRUD API;
// the segmentation core only reads it as the target of compiled predicates.
type Customer struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email"` // unique
	Location      string             `bson:"location,omitempty" json:"location,omitempty"`
	TotalSpend    float64            `bson:"totalSpend" json:"totalSpend"`
	OrderCount    int                `bson:"orderCount" json:"orderCount"`
	LastOrderDate *time.Time         `bson:"lastOrderDate,omitempty" json:"lastOrderDate,omitempty"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	Tags          []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
