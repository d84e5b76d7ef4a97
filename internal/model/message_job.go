// internal/model/message_job.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// MessageJob statuses.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

// DefaultMaxAttempts is the send attempt cap applied to new jobs.
const DefaultMaxAttempts = 3

// MessageJob is one scheduled send for one enrollment at one sequence
// position. Sequence orders within an enrollment are unique and contiguous
// starting at 1, and scheduled instants never decrease with sequence order.
type MessageJob struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	CampaignID       uuid.UUID  `db:"campaign_id" json:"campaign_id"`
	EnrollmentID     uuid.UUID  `db:"enrollment_id" json:"enrollment_id"`
	LeadID           uuid.UUID  `db:"lead_id" json:"lead_id"`
	Channel          string     `db:"channel" json:"channel"`
	TemplateSequence int        `db:"template_sequence" json:"template_sequence"`
	SequenceOrder    int        `db:"sequence_order" json:"sequence_order"` // 1-based
	ScheduledAt      time.Time  `db:"scheduled_at" json:"scheduled_at"`
	Status           string     `db:"status" json:"status"`
	Attempts         int        `db:"attempts" json:"attempts"`
	MaxAttempts      int        `db:"max_attempts" json:"max_attempts"`
	LastError        string     `db:"last_error" json:"last_error,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	ExecutedAt       *time.Time `db:"executed_at" json:"executed_at,omitempty"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
