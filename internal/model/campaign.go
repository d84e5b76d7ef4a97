// internal/model/campaign.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Campaign statuses.
const (
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
	CampaignStatusDeleted   = "deleted"
)

// Channels a campaign can send on.
const (
	ChannelChat  = "chat"
	ChannelEmail = "email"
)

// Campaign defines an audience filter, a message sequence and a cadence.
type Campaign struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	Name           string            `db:"name" json:"name"`
	Channel        string            `db:"channel" json:"channel"`
	Status         string            `db:"status" json:"status"`
	SendToAll      bool              `db:"send_to_all" json:"send_to_all"`
	StageIDs       []string          `db:"stage_ids" json:"stage_ids,omitempty"`
	SourceIDs      []string          `db:"source_ids" json:"source_ids,omitempty"`
	UseCustomDates bool              `db:"use_custom_dates" json:"use_custom_dates"`
	MessageLimit   int               `db:"message_limit" json:"message_limit"`
	DurationDays   int               `db:"duration_days" json:"duration_days"`
	SendTime       string            `db:"send_time" json:"send_time"` // "HH:MM", UTC
	SendOnWeekends bool              `db:"send_on_weekends" json:"send_on_weekends"`
	Templates      []MessageTemplate `json:"templates"`
	CreatedBy      string            `db:"created_by" json:"created_by"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time        `db:"updated_at" json:"updated_at,omitempty"`
}

// MessageTemplate is one step of a campaign's message sequence. Exactly one of
// DayOffset or SendDate is set, depending on the campaign's cadence mode.
type MessageTemplate struct {
	Sequence  int        `db:"sequence" json:"sequence"` // 1-based
	Subject   string     `db:"subject" json:"subject,omitempty"`
	Body      string     `db:"body" json:"body"`
	DayOffset *int       `db:"day_offset" json:"day_offset,omitempty"`
	SendDate  *time.Time `db:"send_date" json:"send_date,omitempty"`
}
