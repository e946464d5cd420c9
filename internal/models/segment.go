package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Condition combiners for a rule set.
const (
	ConditionTypeAnd = "AND"
	ConditionTypeOr  = "OR"
)

// Condition is a single field/operator/value clause of a rule set.
type Condition struct {
	Field    string      `bson:"field" json:"field"`
	Operator string      `bson:"operator" json:"operator"`
	Value    interface{} `bson:"value" json:"value"`
}

// RuleSet is a boolean combination (AND/OR) of conditions describing an
// audience. Segments store one; campaigns may carry an inline one instead of
// referencing a segment.
type RuleSet struct {
	ConditionType string      `bson:"conditionType" json:"conditionType"` // AND, OR
	Conditions    []Condition `bson:"conditions" json:"conditions"`
}

// Segment is a named, reusable audience definition. AudienceSize and
// LastRefreshed are a cache recomputed when the conditions change or on an
// explicit refresh; staleness in between is tolerated.
type Segment struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name          string             `bson:"name" json:"name"`
	ConditionType string             `bson:"conditionType" json:"conditionType"`
	Conditions    []Condition        `bson:"conditions" json:"conditions"`
	AudienceSize  int64              `bson:"audienceSize" json:"audienceSize"`
	LastRefreshed time.Time          `bson:"lastRefreshed,omitempty" json:"lastRefreshed,omitempty"`
	CreatedBy     string             `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Rules returns the segment's rule set.
func (s *Segment) Rules() RuleSet {
	return RuleSet{ConditionType: s.ConditionType, Conditions: s.Conditions}
}
