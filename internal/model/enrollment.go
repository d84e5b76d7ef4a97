// internal/model/enrollment.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment statuses.
const (
	EnrollmentStatusActive             = "active"
	EnrollmentStatusPaused             = "paused"
	EnrollmentStatusCompleted          = "completed"
	EnrollmentStatusCriteriaNotMatched = "criteria_not_matched"
	EnrollmentStatusFailed             = "failed"
	EnrollmentStatusCancelled          = "cancelled"
)

// Enrollment binds one lead to one campaign and tracks its progress through
// the message sequence. There is at most one per (campaign, lead) pair.
type Enrollment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	CampaignID      uuid.UUID  `db:"campaign_id" json:"campaign_id"`
	LeadID          uuid.UUID  `db:"lead_id" json:"lead_id"`
	Status          string     `db:"status" json:"status"`
	EnrolledAt      time.Time  `db:"enrolled_at" json:"enrolled_at"`
	StageAtEnroll   string     `db:"stage_at_enroll" json:"stage_at_enroll"`
	SourceAtEnroll  string     `db:"source_at_enroll" json:"source_at_enroll"`
	MessagesSent    int        `db:"messages_sent" json:"messages_sent"`
	CurrentSequence int        `db:"current_sequence" json:"current_sequence"`
	LastSentAt      *time.Time `db:"last_sent_at" json:"last_sent_at,omitempty"`
}
