// internal/service/monitor.go
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillang/leadg-crm-backend-sub001/internal/apperrors"
	"github.com/skillang/leadg-crm-backend-sub001/internal/metrics"
	"github.com/skillang/leadg-crm-backend-sub001/internal/model"
	"github.com/skillang/leadg-crm-backend-sub001/internal/queue"
	"github.com/skillang/leadg-crm-backend-sub001/internal/repository"
)

// CriteriaMonitor re-checks a lead's active enrollments after its
// qualification attributes change and pauses the ones that no longer match.
type CriteriaMonitor struct {
	CampaignRepo   repository.CampaignRepositoryInterface
	LeadRepo       repository.LeadRepositoryInterface
	EnrollmentRepo repository.EnrollmentRepositoryInterface
	JobRepo        repository.MessageJobRepositoryInterface
	Publisher      queue.Publisher
	Logger         *zap.Logger
}

// OnLeadAttributesChanged is invoked by the lead-update path. Criteria drift
// is a control-flow outcome, not an error: mismatched enrollments are paused
// and their pending jobs cancelled, and an audit event is published.
func (m *CriteriaMonitor) OnLeadAttributesChanged(ctx context.Context, leadID uuid.UUID, attrs model.LeadAttributes) error {
	enrollments, err := m.EnrollmentRepo.ListActiveByLead(ctx, leadID)
	if err != nil {
		return err
	}

	for _, e := range enrollments {
		c, err := m.CampaignRepo.GetByID(ctx, e.CampaignID)
		if err != nil {
			var notFound *apperrors.ErrCampaignNotFound
			if errors.As(err, &notFound) {
				continue
			}
			return err
		}

		criteria, err := ResolveCriteria(ctx, m.LeadRepo, c)
		if err != nil {
			return err
		}
		if criteria.Matches(attrs) {
			continue
		}

		if err := pauseForCriteriaDrift(ctx, m.EnrollmentRepo, m.JobRepo, m.Publisher, m.Logger, e); err != nil {
			return err
		}
	}
	return nil
}

// pauseForCriteriaDrift transitions an enrollment to criteria_not_matched and
// bulk-cancels its pending jobs. Shared by the monitor and the executor's
// inline re-check; idempotent because both transitions are status-guarded.
func pauseForCriteriaDrift(
	ctx context.Context,
	enrollments repository.EnrollmentRepositoryInterface,
	jobs repository.MessageJobRepositoryInterface,
	publisher queue.Publisher,
	logger *zap.Logger,
	e *model.Enrollment,
) error {
	moved, err := enrollments.UpdateStatusWhere(ctx, e.ID, model.EnrollmentStatusActive, model.EnrollmentStatusCriteriaNotMatched)
	if err != nil {
		return err
	}
	if !moved {
		// Another path already paused or completed this enrollment.
		return nil
	}

	cancelled, err := jobs.CancelPendingByEnrollment(ctx, e.ID)
	if err != nil {
		return err
	}

	metrics.EnrollmentsPaused.Inc()
	metrics.JobsCancelled.Add(float64(cancelled))

	logger.Info("enrollment paused on criteria drift",
		zap.String("enrollment_id", e.ID.String()),
		zap.String("campaign_id", e.CampaignID.String()),
		zap.String("lead_id", e.LeadID.String()),
		zap.Int64("jobs_cancelled", cancelled),
	)

	if err := publisher.Publish(ctx, queue.Event{
		Type:         queue.EventEnrollmentPaused,
		CampaignID:   e.CampaignID.String(),
		EnrollmentID: e.ID.String(),
		LeadID:       e.LeadID.String(),
		Detail:       "criteria no longer matched",
		At:           time.Now().UTC(),
	}); err != nil {
		logger.Warn("failed to publish pause event", zap.Error(err))
	}
	return nil
}
