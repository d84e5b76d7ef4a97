package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/skillang/leadg-crm-backend-sub001/internal/model"
)

type MessageJobRepositoryInterface interface {
	CreateBatch(ctx context.Context, jobs []*model.MessageJob) error
	// DueJobs returns pending jobs whose scheduled instant has passed, oldest
	// first, capped at limit to bound tick latency.
	DueJobs(ctx context.Context, now time.Time, limit int) ([]*model.MessageJob, error)
	// MarkProcessing claims a pending job. Returns false when another path
	// already claimed or cancelled it.
	MarkProcessing(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// RescheduleForRetry returns a processing job to pending with a new
	// scheduled instant, bumping the attempt counter.
	RescheduleForRetry(ctx context.Context, id uuid.UUID, at time.Time, lastError string) error
	// Requeue returns a processing job to pending without consuming an
	// attempt. Used after infrastructure errors, where the adapter was never
	// invoked.
	Requeue(ctx context.Context, id uuid.UUID, at time.Time, lastError string) error
	// FailPermanently marks a processing job failed, bumping the attempt
	// counter.
	FailPermanently(ctx context.Context, id uuid.UUID, lastError string) error
	// CancelJob cancels a single pending or processing job.
	CancelJob(ctx context.Context, id uuid.UUID) (bool, error)
	// CancelPendingByEnrollment bulk-cancels every pending job of the
	// enrollment, returning how many were cancelled.
	CancelPendingByEnrollment(ctx context.Context, enrollmentID uuid.UUID) (int64, error)
	// CountByCampaign returns total and still-pending job counts.
	CountByCampaign(ctx context.Context, campaignID uuid.UUID) (total, pending int, err error)
	StatsByCampaign(ctx context.Context, campaignID uuid.UUID) (map[string]int, error)
}

type MessageJobRepository struct {
	DB *sql.DB
}

func (r *MessageJobRepository) CreateBatch(ctx context.Context, jobs []*model.MessageJob) error {
	if len(jobs) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO message_jobs
            (id, campaign_id, enrollment_id, lead_id, channel, template_sequence,
             sequence_order, scheduled_at, status, attempts, max_attempts, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11)
    `)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, j := range jobs {
		if j.ID == uuid.Nil {
			j.ID = uuid.New()
		}
		_, err := stmt.ExecContext(ctx,
			j.ID, j.CampaignID, j.EnrollmentID, j.LeadID, j.Channel, j.TemplateSequence,
			j.SequenceOrder, j.ScheduledAt, j.Status, j.MaxAttempts, j.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

const jobColumns = `id, campaign_id, enrollment_id, lead_id, channel, template_sequence,
       sequence_order, scheduled_at, status, attempts, max_attempts, last_error,
       created_at, executed_at, completed_at`

func scanJob(row interface{ Scan(...interface{}) error }) (*model.MessageJob, error) {
	j := &model.MessageJob{}
	var lastError sql.NullString
	err := row.Scan(
		&j.ID, &j.CampaignID, &j.EnrollmentID, &j.LeadID, &j.Channel, &j.TemplateSequence,
		&j.SequenceOrder, &j.ScheduledAt, &j.Status, &j.Attempts, &j.MaxAttempts, &lastError,
		&j.CreatedAt, &j.ExecutedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	j.LastError = lastError.String
	return j, nil
}

func (r *MessageJobRepository) DueJobs(ctx context.Context, now time.Time, limit int) ([]*model.MessageJob, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT `+jobColumns+`
        FROM message_jobs
        WHERE status=$1 AND scheduled_at <= $2
        ORDER BY scheduled_at
        LIMIT $3
    `, model.JobStatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*model.MessageJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *MessageJobRepository) MarkProcessing(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := r.DB.ExecContext(ctx, `
        UPDATE message_jobs SET status=$1, executed_at=$2
        WHERE id=$3 AND status=$4
    `, model.JobStatusProcessing, at, id, model.JobStatusPending)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MessageJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := r.DB.ExecContext(ctx, `
        UPDATE message_jobs SET status=$1, completed_at=$2, last_error=''
        WHERE id=$3 AND status=$4
    `, model.JobStatusCompleted, at, id, model.JobStatusProcessing)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MessageJobRepository) RescheduleForRetry(ctx context.Context, id uuid.UUID, at time.Time, lastError string) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE message_jobs
        SET status=$1, scheduled_at=$2, attempts=attempts+1, last_error=$3
        WHERE id=$4 AND status=$5
    `, model.JobStatusPending, at, lastError, id, model.JobStatusProcessing)
	return err
}

func (r *MessageJobRepository) Requeue(ctx context.Context, id uuid.UUID, at time.Time, lastError string) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE message_jobs
        SET status=$1, scheduled_at=$2, last_error=$3
        WHERE id=$4 AND status=$5
    `, model.JobStatusPending, at, lastError, id, model.JobStatusProcessing)
	return err
}

func (r *MessageJobRepository) FailPermanently(ctx context.Context, id uuid.UUID, lastError string) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE message_jobs
        SET status=$1, attempts=attempts+1, last_error=$2, completed_at=NOW()
        WHERE id=$3 AND status=$4
    `, model.JobStatusFailed, lastError, id, model.JobStatusProcessing)
	return err
}

func (r *MessageJobRepository) CancelJob(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.DB.ExecContext(ctx, `
        UPDATE message_jobs SET status=$1, completed_at=NOW()
        WHERE id=$2 AND status IN ($3, $4)
    `, model.JobStatusCancelled, id, model.JobStatusPending, model.JobStatusProcessing)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MessageJobRepository) CancelPendingByEnrollment(ctx context.Context, enrollmentID uuid.UUID) (int64, error) {
	result, err := r.DB.ExecContext(ctx, `
        UPDATE message_jobs SET status=$1, completed_at=NOW()
        WHERE enrollment_id=$2 AND status=$3
    `, model.JobStatusCancelled, enrollmentID, model.JobStatusPending)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *MessageJobRepository) CountByCampaign(ctx context.Context, campaignID uuid.UUID) (int, int, error) {
	var total, pending int
	err := r.DB.QueryRowContext(ctx, `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status IN ($2, $3))
        FROM message_jobs WHERE campaign_id=$1
    `, campaignID, model.JobStatusPending, model.JobStatusProcessing).Scan(&total, &pending)
	if err != nil {
		return 0, 0, err
	}
	return total, pending, nil
}

func (r *MessageJobRepository) StatsByCampaign(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM message_jobs WHERE campaign_id=$1 GROUP BY status`,
		campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ MessageJobRepositoryInterface = (*MessageJobRepository)(nil)
