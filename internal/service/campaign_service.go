// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillang/leadg-crm-backend-sub001/internal/apperrors"
	"github.com/skillang/leadg-crm-backend-sub001/internal/model"
	"github.com/skillang/leadg-crm-backend-sub001/internal/repository"
	"github.com/skillang/leadg-crm-backend-sub001/internal/schedule"
)

type CampaignService struct {
	CampaignRepo   repository.CampaignRepositoryInterface
	EnrollmentRepo repository.EnrollmentRepositoryInterface
	JobRepo        repository.MessageJobRepositoryInterface
	LeadRepo       repository.LeadRepositoryInterface
	Logger         *zap.Logger
	Clock          func() time.Time
}

func (s *CampaignService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

// CreateCampaignInput is the campaign definition as submitted by the caller.
type CreateCampaignInput struct {
	Name           string                  `json:"name"`
	Channel        string                  `json:"channel"`
	SendToAll      bool                    `json:"send_to_all"`
	StageIDs       []string                `json:"stage_ids"`
	SourceIDs      []string                `json:"source_ids"`
	UseCustomDates bool                    `json:"use_custom_dates"`
	MessageLimit   int                     `json:"message_limit"`
	DurationDays   int                     `json:"campaign_duration_days"`
	SendTime       string                  `json:"send_time"`
	SendOnWeekends bool                    `json:"send_on_weekends"`
	Templates      []model.MessageTemplate `json:"templates"`
	CreatedBy      string                  `json:"created_by"`
}

// CreateCampaignResult carries the new campaign and the send-date preview,
// computed by the same algorithm the enrollment generator uses.
type CreateCampaignResult struct {
	Campaign        *model.Campaign `json:"campaign"`
	SchedulePreview []time.Time     `json:"schedule_preview"`
}

func (s *CampaignService) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*CreateCampaignResult, error) {
	if err := validateDefinition(in); err != nil {
		return nil, err
	}

	c := &model.Campaign{
		ID:             uuid.New(),
		Name:           in.Name,
		Channel:        in.Channel,
		Status:         model.CampaignStatusActive,
		SendToAll:      in.SendToAll,
		StageIDs:       in.StageIDs,
		SourceIDs:      in.SourceIDs,
		UseCustomDates: in.UseCustomDates,
		MessageLimit:   in.MessageLimit,
		DurationDays:   in.DurationDays,
		SendTime:       in.SendTime,
		SendOnWeekends: in.SendOnWeekends,
		Templates:      in.Templates,
		CreatedBy:      in.CreatedBy,
	}

	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	s.Logger.Info("campaign created",
		zap.String("campaign_id", c.ID.String()),
		zap.String("channel", c.Channel),
		zap.Int("message_limit", c.MessageLimit),
	)

	return &CreateCampaignResult{
		Campaign:        c,
		SchedulePreview: schedule.Preview(c, s.now()),
	}, nil
}

func validateDefinition(in CreateCampaignInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.NewValidation("name", "must not be empty")
	}
	if in.Channel != model.ChannelChat && in.Channel != model.ChannelEmail {
		return apperrors.NewValidation("channel", "must be chat or email")
	}
	if !in.SendToAll && len(in.StageIDs) == 0 && len(in.SourceIDs) == 0 {
		return apperrors.NewValidation("audience", "must target all leads or configure stage/source criteria")
	}
	if len(in.Templates) < 2 {
		return apperrors.NewValidation("templates", "at least 2 templates required")
	}
	if len(in.Templates) > in.MessageLimit {
		return apperrors.NewValidation("templates", "template count must not exceed message limit")
	}
	if _, err := time.Parse("15:04", in.SendTime); err != nil {
		return apperrors.NewValidation("send_time", "must be HH:MM")
	}

	if in.UseCustomDates {
		for _, t := range in.Templates {
			if t.SendDate == nil {
				return apperrors.NewValidation("templates", fmt.Sprintf("template %d is missing its send date", t.Sequence))
			}
			if t.DayOffset != nil {
				return apperrors.NewValidation("templates", fmt.Sprintf("template %d carries a day offset in custom-date mode", t.Sequence))
			}
		}
		return nil
	}

	if in.MessageLimit < 2 {
		return apperrors.NewValidation("message_limit", "must be at least 2")
	}
	if in.DurationDays < in.MessageLimit {
		return apperrors.NewValidation("campaign_duration_days", "must be at least the message limit")
	}
	for _, t := range in.Templates {
		if t.SendDate != nil {
			return apperrors.NewValidation("templates", fmt.Sprintf("template %d carries an explicit date in offset mode", t.Sequence))
		}
	}
	return nil
}

// Pause suspends an active campaign. Jobs already in flight finish their
// current attempt; due jobs of a paused campaign are cancelled by the
// executor when they come up.
func (s *CampaignService) Pause(ctx context.Context, id uuid.UUID) error {
	ok, err := s.CampaignRepo.UpdateStatusWhere(ctx, id, model.CampaignStatusActive, model.CampaignStatusPaused)
	if err != nil {
		return err
	}
	if !ok {
		// Read after the failed guard so the error reports the status that
		// actually blocked the transition.
		c, err := s.CampaignRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return apperrors.NewCampaignNotActive(id, c.Status)
	}
	s.Logger.Info("campaign paused", zap.String("campaign_id", id.String()))
	return nil
}

// Resume reactivates a paused campaign; its pending jobs become eligible on
// the next poll tick.
func (s *CampaignService) Resume(ctx context.Context, id uuid.UUID) error {
	ok, err := s.CampaignRepo.UpdateStatusWhere(ctx, id, model.CampaignStatusPaused, model.CampaignStatusActive)
	if err != nil {
		return err
	}
	if !ok {
		c, err := s.CampaignRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("campaign %s is %s, not paused", id, c.Status)
	}
	s.Logger.Info("campaign resumed", zap.String("campaign_id", id.String()))
	return nil
}

// Delete soft-deletes a campaign. In-flight jobs finish their current
// attempt; everything still pending is cancelled lazily by the executor.
func (s *CampaignService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.CampaignRepo.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.CampaignRepo.UpdateStatus(ctx, id, model.CampaignStatusDeleted); err != nil {
		return err
	}
	s.Logger.Info("campaign deleted", zap.String("campaign_id", id.String()))
	return nil
}

// CampaignDetails is a campaign with progress derived from enrollment and job
// statuses. There is no separate error log: a failed job's last_error is the
// diagnostic.
type CampaignDetails struct {
	*model.Campaign
	EnrollmentStats map[string]int `json:"enrollment_stats"`
	JobStats        map[string]int `json:"job_stats"`
}

func (s *CampaignService) GetCampaignDetails(ctx context.Context, id uuid.UUID) (*CampaignDetails, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	enrollmentStats, err := s.EnrollmentRepo.StatsByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	jobStats, err := s.JobRepo.StatsByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	return &CampaignDetails{
		Campaign:        c,
		EnrollmentStats: enrollmentStats,
		JobStats:        jobStats,
	}, nil
}

// ListCampaigns fetches campaigns with pagination.
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, channel, status string) ([]*model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	campaigns, total, err := s.CampaignRepo.ListCampaigns(ctx, offset, pageSize, channel, status)
	if err != nil {
		return nil, nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

// RenderPreview personalizes one of the campaign's templates for a lead.
func (s *CampaignService) RenderPreview(ctx context.Context, campaignID, leadID uuid.UUID, overrideTemplate *string) (string, error) {
	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return "", err
	}

	lead, err := s.LeadRepo.GetByID(ctx, leadID)
	if err != nil {
		return "", err
	}
	if lead == nil {
		return "", apperrors.NewLeadNotFound(leadID)
	}

	template := ""
	if len(c.Templates) > 0 {
		template = c.Templates[0].Body
	}
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		template = *overrideTemplate
	}
	if strings.TrimSpace(template) == "" {
		return "", apperrors.NewValidation("template", "must not be empty")
	}

	return RenderForLead(template, lead), nil
}
