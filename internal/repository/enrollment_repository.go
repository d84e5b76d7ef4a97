package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/skillang/leadg-crm-backend-sub001/internal/model"
)

type EnrollmentRepositoryInterface interface {
	// Create inserts the enrollment. Returns false without error when the
	// (campaign, lead) pair is already enrolled.
	Create(ctx context.Context, e *model.Enrollment) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Enrollment, error)
	ListActiveByLead(ctx context.Context, leadID uuid.UUID) ([]*model.Enrollment, error)
	// UpdateStatusWhere transitions status only from the expected status.
	UpdateStatusWhere(ctx context.Context, id uuid.UUID, expected, status string) (bool, error)
	// TransitionAllByCampaign moves every enrollment of the campaign currently
	// in the expected status to the new status, returning how many moved.
	TransitionAllByCampaign(ctx context.Context, campaignID uuid.UUID, expected, status string) (int64, error)
	// IncrementProgress bumps the sent counter and sequence pointer after a
	// successful send.
	IncrementProgress(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	StatsByCampaign(ctx context.Context, campaignID uuid.UUID) (map[string]int, error)
}

type EnrollmentRepository struct {
	DB *sql.DB
}

func (r *EnrollmentRepository) Create(ctx context.Context, e *model.Enrollment) (bool, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = model.EnrollmentStatusActive
	}

	// The unique (campaign_id, lead_id) index makes re-enrollment a no-op.
	result, err := r.DB.ExecContext(ctx, `
        INSERT INTO enrollments
            (id, campaign_id, lead_id, status, enrolled_at,
             stage_at_enroll, source_at_enroll, messages_sent, current_sequence)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0)
        ON CONFLICT (campaign_id, lead_id) DO NOTHING
    `, e.ID, e.CampaignID, e.LeadID, e.Status, e.EnrolledAt, e.StageAtEnroll, e.SourceAtEnroll)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *EnrollmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.DB.QueryRowContext(ctx, `
        SELECT id, campaign_id, lead_id, status, enrolled_at,
               stage_at_enroll, source_at_enroll, messages_sent, current_sequence, last_sent_at
        FROM enrollments WHERE id=$1
    `, id).Scan(
		&e.ID, &e.CampaignID, &e.LeadID, &e.Status, &e.EnrolledAt,
		&e.StageAtEnroll, &e.SourceAtEnroll, &e.MessagesSent, &e.CurrentSequence, &e.LastSentAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *EnrollmentRepository) ListActiveByLead(ctx context.Context, leadID uuid.UUID) ([]*model.Enrollment, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, campaign_id, lead_id, status, enrolled_at,
               stage_at_enroll, source_at_enroll, messages_sent, current_sequence, last_sent_at
        FROM enrollments WHERE lead_id=$1 AND status=$2
    `, leadID, model.EnrollmentStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	enrollments := []*model.Enrollment{}
	for rows.Next() {
		e := &model.Enrollment{}
		err := rows.Scan(
			&e.ID, &e.CampaignID, &e.LeadID, &e.Status, &e.EnrolledAt,
			&e.StageAtEnroll, &e.SourceAtEnroll, &e.MessagesSent, &e.CurrentSequence, &e.LastSentAt,
		)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

func (r *EnrollmentRepository) UpdateStatusWhere(ctx context.Context, id uuid.UUID, expected, status string) (bool, error) {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE enrollments SET status=$1 WHERE id=$2 AND status=$3`,
		status, id, expected)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *EnrollmentRepository) TransitionAllByCampaign(ctx context.Context, campaignID uuid.UUID, expected, status string) (int64, error) {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE enrollments SET status=$1 WHERE campaign_id=$2 AND status=$3`,
		status, campaignID, expected)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *EnrollmentRepository) IncrementProgress(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE enrollments
        SET messages_sent = messages_sent + 1,
            current_sequence = current_sequence + 1,
            last_sent_at = $1
        WHERE id = $2
    `, sentAt, id)
	return err
}

func (r *EnrollmentRepository) StatsByCampaign(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM enrollments WHERE campaign_id=$1 GROUP BY status`,
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

var _ EnrollmentRepositoryInterface = (*EnrollmentRepository)(nil)
