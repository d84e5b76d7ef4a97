// internal/service/completion.go
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

// CompletionDetector closes out a campaign once every one of its jobs has
// reached a terminal state.
type CompletionDetector struct {
	CampaignRepo   repository.CampaignRepositoryInterface
	EnrollmentRepo repository.EnrollmentRepositoryInterface
	JobRepo        repository.MessageJobRepositoryInterface
	Publisher      queue.Publisher
	Logger         *zap.Logger
}

// CheckCompletion marks the campaign and its still-active enrollments
// completed when the campaign has jobs and none are pending. No-op when the
// campaign is missing, not active, or has no jobs yet. Idempotent: the
// active→completed transition is status-guarded, so a second caller loses the
// race cleanly.
func (d *CompletionDetector) CheckCompletion(ctx context.Context, campaignID uuid.UUID) error {
	c, err := d.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		var notFound *apperrors.ErrCampaignNotFound
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	if c.Status != model.CampaignStatusActive {
		return nil
	}

	total, pending, err := d.JobRepo.CountByCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if total == 0 || pending > 0 {
		return nil
	}

	moved, err := d.CampaignRepo.UpdateStatusWhere(ctx, campaignID, model.CampaignStatusActive, model.CampaignStatusCompleted)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}

	completed, err := d.EnrollmentRepo.TransitionAllByCampaign(ctx, campaignID,
		model.EnrollmentStatusActive, model.EnrollmentStatusCompleted)
	if err != nil {
		return err
	}

	metrics.CampaignsCompleted.Inc()
	d.Logger.Info("campaign completed",
		zap.String("campaign_id", campaignID.String()),
		zap.Int("total_jobs", total),
		zap.Int64("enrollments_completed", completed),
	)

	if err := d.Publisher.Publish(ctx, queue.Event{
		Type:       queue.EventCampaignCompleted,
		CampaignID: campaignID.String(),
		At:         time.Now().UTC(),
	}); err != nil {
		d.Logger.Warn("failed to publish completion event", zap.Error(err))
	}
	return nil
}
