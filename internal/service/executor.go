// internal/service/executor.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/skillang/leadg-crm-backend-sub001/internal/apperrors"
	"github.com/skillang/leadg-crm-backend-sub001/internal/channel"
	"github.com/skillang/leadg-crm-backend-sub001/internal/metrics"
	"github.com/skillang/leadg-crm-backend-sub001/internal/model"
	"github.com/skillang/leadg-crm-backend-sub001/internal/queue"
	"github.com/skillang/leadg-crm-backend-sub001/internal/repository"
)

// Executor processes due message jobs. Each job is handled independently so a
// bad record cannot halt the batch; all failures land on the job or
// enrollment row, never on the caller.
type Executor struct {
	CampaignRepo   repository.CampaignRepositoryInterface
	LeadRepo       repository.LeadRepositoryInterface
	EnrollmentRepo repository.EnrollmentRepositoryInterface
	JobRepo        repository.MessageJobRepositoryInterface
	Senders        channel.Registry
	Publisher      queue.Publisher
	Completion     *CompletionDetector
	Logger         *zap.Logger
	Limiter        *rate.Limiter
	Clock          func() time.Time

	BatchSize  int
	RetryDelay time.Duration
}

func (x *Executor) now() time.Time {
	if x.Clock != nil {
		return x.Clock()
	}
	return time.Now().UTC()
}

// ProcessDueJobs runs one executor tick: claim due jobs (bounded batch),
// re-validate preconditions, send, and record the outcome. Completion is
// checked for each touched campaign regardless of job outcome.
func (x *Executor) ProcessDueJobs(ctx context.Context) error {
	now := x.now()
	batch := x.BatchSize
	if batch <= 0 {
		batch = 50
	}

	due, err := x.JobRepo.DueJobs(ctx, now, batch)
	if err != nil {
		return fmt.Errorf("query due jobs: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	x.Logger.Debug("processing due jobs", zap.Int("count", len(due)))

	touched := map[string]*model.MessageJob{}
	for _, job := range due {
		if err := x.processJob(ctx, job); err != nil {
			x.Logger.Error("job processing error",
				zap.String("job_id", job.ID.String()),
				zap.String("campaign_id", job.CampaignID.String()),
				zap.Error(err),
			)
		}
		touched[job.CampaignID.String()] = job
	}

	for _, job := range touched {
		if err := x.Completion.CheckCompletion(ctx, job.CampaignID); err != nil {
			x.Logger.Error("completion check error",
				zap.String("campaign_id", job.CampaignID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (x *Executor) processJob(ctx context.Context, job *model.MessageJob) error {
	now := x.now()

	claimed, err := x.JobRepo.MarkProcessing(ctx, job.ID, now)
	if err != nil {
		return err
	}
	if !claimed {
		// Cancelled or picked up elsewhere between the due query and now.
		return nil
	}

	// Preconditions will not self-heal, so their failures are terminal.
	c, err := x.CampaignRepo.GetByID(ctx, job.CampaignID)
	if err != nil {
		var notFound *apperrors.ErrCampaignNotFound
		if errors.As(err, &notFound) {
			return x.cancelJob(ctx, job, "campaign not found")
		}
		return x.retryLater(ctx, job, err)
	}
	if c.Status != model.CampaignStatusActive {
		return x.cancelJob(ctx, job, "campaign not active")
	}

	e, err := x.EnrollmentRepo.GetByID(ctx, job.EnrollmentID)
	if err != nil {
		return x.retryLater(ctx, job, err)
	}
	if e == nil || e.Status != model.EnrollmentStatusActive {
		return x.cancelJob(ctx, job, "enrollment not active")
	}

	lead, err := x.LeadRepo.GetByID(ctx, job.LeadID)
	if err != nil {
		return x.retryLater(ctx, job, err)
	}
	if lead == nil {
		metrics.MessageFailures.Inc()
		return x.JobRepo.FailPermanently(ctx, job.ID, "record not found")
	}

	// Criteria are evaluated against the lead's current attributes, not the
	// enrollment-time snapshot.
	criteria, err := ResolveCriteria(ctx, x.LeadRepo, c)
	if err != nil {
		return x.retryLater(ctx, job, err)
	}
	if !criteria.Matches(model.LeadAttributes{Stage: lead.Stage, Source: lead.Source}) {
		if err := pauseForCriteriaDrift(ctx, x.EnrollmentRepo, x.JobRepo, x.Publisher, x.Logger, e); err != nil {
			return err
		}
		// This job is processing, not pending, so the bulk cancel skipped it.
		return x.cancelJob(ctx, job, "criteria no longer matched")
	}

	return x.send(ctx, c, e, lead, job)
}

func (x *Executor) send(ctx context.Context, c *model.Campaign, e *model.Enrollment, lead *model.Lead, job *model.MessageJob) error {
	if x.Limiter != nil {
		if err := x.Limiter.Wait(ctx); err != nil {
			return x.retryLater(ctx, job, err)
		}
	}

	sender, err := x.Senders.For(c.Channel)
	if err != nil {
		return x.retryLater(ctx, job, err)
	}

	tmpl := templateBySequence(c, job.TemplateSequence)
	if tmpl == nil {
		metrics.MessageFailures.Inc()
		return x.JobRepo.FailPermanently(ctx, job.ID, fmt.Sprintf("template %d not found", job.TemplateSequence))
	}

	msg := channel.Message{
		To:      lead.Address(c.Channel),
		Subject: RenderForLead(tmpl.Subject, lead),
		Body:    RenderForLead(tmpl.Body, lead),
	}

	if sendErr := sender.Send(ctx, msg); sendErr != nil {
		return x.handleSendFailure(ctx, job, sendErr)
	}

	now := x.now()
	if _, err := x.JobRepo.MarkCompleted(ctx, job.ID, now); err != nil {
		return err
	}
	if err := x.EnrollmentRepo.IncrementProgress(ctx, e.ID, now); err != nil {
		return err
	}

	metrics.MessagesSent.Inc()
	x.Logger.Info("message sent",
		zap.String("job_id", job.ID.String()),
		zap.String("campaign_id", c.ID.String()),
		zap.String("lead_id", lead.ID.String()),
		zap.Int("sequence", job.SequenceOrder),
	)

	if err := x.Publisher.Publish(ctx, queue.Event{
		Type:         queue.EventMessageSent,
		CampaignID:   c.ID.String(),
		EnrollmentID: e.ID.String(),
		LeadID:       lead.ID.String(),
		JobID:        job.ID.String(),
		At:           now,
	}); err != nil {
		x.Logger.Warn("failed to publish sent event", zap.Error(err))
	}
	return nil
}

// handleSendFailure retries transient adapter failures with a fixed backoff
// up to the job's attempt cap, then fails the job for good. A failed message
// never cancels the rest of the enrollment's sequence.
func (x *Executor) handleSendFailure(ctx context.Context, job *model.MessageJob, sendErr error) error {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		metrics.MessageFailures.Inc()
		x.Logger.Warn("message permanently failed",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempts", attempts),
			zap.Error(sendErr),
		)
		if err := x.JobRepo.FailPermanently(ctx, job.ID, sendErr.Error()); err != nil {
			return err
		}
		if err := x.Publisher.Publish(ctx, queue.Event{
			Type:         queue.EventMessageFailed,
			CampaignID:   job.CampaignID.String(),
			EnrollmentID: job.EnrollmentID.String(),
			LeadID:       job.LeadID.String(),
			JobID:        job.ID.String(),
			Detail:       sendErr.Error(),
			At:           x.now(),
		}); err != nil {
			x.Logger.Warn("failed to publish failure event", zap.Error(err))
		}
		return nil
	}

	retryAt := x.now().Add(x.retryDelay())
	x.Logger.Info("message send failed, retrying",
		zap.String("job_id", job.ID.String()),
		zap.Int("attempt", attempts),
		zap.Time("retry_at", retryAt),
		zap.Error(sendErr),
	)
	return x.JobRepo.RescheduleForRetry(ctx, job.ID, retryAt, sendErr.Error())
}

// retryLater returns a claimed job to pending after an infrastructure error.
// The attempt cap covers adapter send failures only; a job whose adapter was
// never invoked keeps all its attempts.
func (x *Executor) retryLater(ctx context.Context, job *model.MessageJob, cause error) error {
	return x.JobRepo.Requeue(ctx, job.ID, x.now().Add(x.retryDelay()), cause.Error())
}

func (x *Executor) cancelJob(ctx context.Context, job *model.MessageJob, reason string) error {
	cancelled, err := x.JobRepo.CancelJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if cancelled {
		metrics.JobsCancelled.Inc()
		x.Logger.Info("job cancelled",
			zap.String("job_id", job.ID.String()),
			zap.String("reason", reason),
		)
	}
	return nil
}

func (x *Executor) retryDelay() time.Duration {
	if x.RetryDelay > 0 {
		return x.RetryDelay
	}
	return 5 * time.Minute
}

func templateBySequence(c *model.Campaign, sequence int) *model.MessageTemplate {
	for i := range c.Templates {
		if c.Templates[i].Sequence == sequence {
			return &c.Templates[i]
		}
	}
	return nil
}
