// internal/apperrors/errors.go
package apperrors

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrCampaignNotFound is returned for lookups of unknown campaigns.
type ErrCampaignNotFound struct {
	CampaignID uuid.UUID
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign %s not found", e.CampaignID)
}

func NewCampaignNotFound(id uuid.UUID) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrCampaignNotActive is returned when an operation requires an active
// campaign and the campaign is in any other status.
type ErrCampaignNotActive struct {
	CampaignID uuid.UUID
	Status     string
}

func (e *ErrCampaignNotActive) Error() string {
	return fmt.Sprintf("campaign %s is %s, not active", e.CampaignID, e.Status)
}

func NewCampaignNotActive(id uuid.UUID, status string) error {
	return &ErrCampaignNotActive{CampaignID: id, Status: status}
}

// ErrLeadNotFound is returned for lookups of unknown leads.
type ErrLeadNotFound struct {
	LeadID uuid.UUID
}

func (e *ErrLeadNotFound) Error() string {
	return fmt.Sprintf("lead %s not found", e.LeadID)
}

func NewLeadNotFound(id uuid.UUID) error {
	return &ErrLeadNotFound{LeadID: id}
}

// ValidationError reports an invalid campaign definition with the offending
// field. Definition errors are returned synchronously to the creation caller
// and never reach the executor.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func NewValidation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
