// internal/service/enrollment_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillang/leadg-crm-backend-sub001/internal/apperrors"
	"github.com/skillang/leadg-crm-backend-sub001/internal/metrics"
	"github.com/skillang/leadg-crm-backend-sub001/internal/model"
	"github.com/skillang/leadg-crm-backend-sub001/internal/queue"
	"github.com/skillang/leadg-crm-backend-sub001/internal/repository"
	"github.com/skillang/leadg-crm-backend-sub001/internal/schedule"
)

// EnrollmentService finds newly qualifying leads for a campaign and generates
// their message job sequences.
type EnrollmentService struct {
	CampaignRepo   repository.CampaignRepositoryInterface
	LeadRepo       repository.LeadRepositoryInterface
	EnrollmentRepo repository.EnrollmentRepositoryInterface
	JobRepo        repository.MessageJobRepositoryInterface
	Publisher      queue.Publisher
	Logger         *zap.Logger
	Clock          func() time.Time
}

func (s *EnrollmentService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

type EnrollResult struct {
	CampaignID    uuid.UUID `json:"campaign_id"`
	EnrolledCount int       `json:"enrolled_count"`
	TotalMatching int       `json:"total_matching"`
}

// Enroll sweeps in every lead that currently matches the campaign's audience
// filter and is not yet enrolled. Safe to call repeatedly: the matching query
// excludes enrolled leads and the insert is idempotent per (campaign, lead).
func (s *EnrollmentService) Enroll(ctx context.Context, campaignID uuid.UUID) (*EnrollResult, error) {
	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignStatusActive {
		return nil, apperrors.NewCampaignNotActive(campaignID, c.Status)
	}

	criteria, err := ResolveCriteria(ctx, s.LeadRepo, c)
	if err != nil {
		return nil, err
	}

	leads, err := s.LeadRepo.FindMatching(ctx, criteria.Filter(), campaignID, c.Channel)
	if err != nil {
		return nil, fmt.Errorf("find matching leads: %w", err)
	}

	result := &EnrollResult{CampaignID: campaignID, TotalMatching: len(leads)}
	now := s.now()

	for i := range leads {
		lead := &leads[i]
		if err := s.enrollLead(ctx, c, lead, now); err != nil {
			s.Logger.Warn("failed to enroll lead",
				zap.String("campaign_id", campaignID.String()),
				zap.String("lead_id", lead.ID.String()),
				zap.Error(err),
			)
			continue
		}
		result.EnrolledCount++
	}

	s.Logger.Info("enrollment sweep finished",
		zap.String("campaign_id", campaignID.String()),
		zap.Int("matching", result.TotalMatching),
		zap.Int("enrolled", result.EnrolledCount),
	)
	return result, nil
}

func (s *EnrollmentService) enrollLead(ctx context.Context, c *model.Campaign, lead *model.Lead, now time.Time) error {
	e := &model.Enrollment{
		ID:             uuid.New(),
		CampaignID:     c.ID,
		LeadID:         lead.ID,
		Status:         model.EnrollmentStatusActive,
		EnrolledAt:     now,
		StageAtEnroll:  lead.Stage,
		SourceAtEnroll: lead.Source,
	}

	created, err := s.EnrollmentRepo.Create(ctx, e)
	if err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	if !created {
		// Already enrolled; the matching query and the insert guard overlap
		// on purpose so concurrent sweeps stay idempotent.
		return nil
	}

	jobs := schedule.BuildJobs(c, e, now)
	if err := s.JobRepo.CreateBatch(ctx, jobs); err != nil {
		return fmt.Errorf("create message jobs: %w", err)
	}

	metrics.EnrollmentsCreated.Inc()
	if err := s.Publisher.Publish(ctx, queue.Event{
		Type:         queue.EventEnrollmentCreated,
		CampaignID:   c.ID.String(),
		EnrollmentID: e.ID.String(),
		LeadID:       lead.ID.String(),
		At:           now,
	}); err != nil {
		s.Logger.Warn("failed to publish enrollment event", zap.Error(err))
	}

	return nil
}
