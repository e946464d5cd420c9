package services

import (
	"errors"
	"fmt"
)

// Synchronous validation errors surfaced to the API caller.
var (
	ErrNoRuleSource       = errors.New("campaign must reference a segment or carry inline rules, not both or neither")
	ErrSegmentNotFound    = errors.New("segment not found")
	ErrDuplicateEmail     = errors.New("a customer with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AudienceResolutionError marks an unrecoverable failure while resolving a
// campaign's audience. The campaign is moved to FAILED; the error is logged,
// never retried.
type AudienceResolutionError struct {
	CampaignID string
	Err        error
}

func (e *AudienceResolutionError) Error() string {
	return fmt.Sprintf("audience resolution failed for campaign %s: %v", e.CampaignID, e.Err)
}

func (e *AudienceResolutionError) Unwrap() error { return e.Err }
