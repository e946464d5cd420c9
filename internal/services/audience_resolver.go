package services

import (
	"context"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/repositories"
	"github.com/pulsecrm/pulse-crm-backend/internal/rules"
)

// PreviewSampleSize caps the customers returned by a preview.
const PreviewSampleSize = 5

// AudiencePreview is the count-plus-sample result backing the audience
// preview UI. The count always comes from the full customer set; only the
// sample is truncated.
type AudiencePreview struct {
	Count  int64              `json:"count"`
	Sample []*models.Customer `json:"sample"`
}

// AudienceResolver applies compiled rule sets to the customer store. It
// offers a count-only path for previews and a streaming path for delivery
// log creation.
type AudienceResolver struct {
	customers repositories.CustomerRepository
}

// NewAudienceResolver creates a new AudienceResolver
func NewAudienceResolver(customers repositories.CustomerRepository) *AudienceResolver {
	return &AudienceResolver{customers: customers}
}

// Count returns the number of customers matching the rule set.
func (r *AudienceResolver) Count(ctx context.Context, rs models.RuleSet) (int64, error) {
	pred, err := rules.Compile(rs)
	if err != nil {
		return 0, err
	}
	return r.customers.CountMatching(ctx, pred)
}

// Preview returns the matching count plus up to PreviewSampleSize customers.
func (r *AudienceResolver) Preview(ctx context.Context, rs models.RuleSet) (*AudiencePreview, error) {
	pred, err := rules.Compile(rs)
	if err != nil {
		return nil, err
	}
	count, err := r.customers.CountMatching(ctx, pred)
	if err != nil {
		return nil, err
	}
	sample, err := r.customers.FindMatching(ctx, pred, PreviewSampleSize)
	if err != nil {
		return nil, err
	}
	return &AudiencePreview{Count: count, Sample: sample}, nil
}

// Each streams every matching customer through fn.
func (r *AudienceResolver) Each(ctx context.Context, rs models.RuleSet, fn func(*models.Customer) error) error {
	pred, err := rules.Compile(rs)
	if err != nil {
		return err
	}
	return r.customers.EachMatching(ctx, pred, fn)
}
