package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/skillang/leadg-crm-backend-sub001/internal/apperrors"
	"github.com/skillang/leadg-crm-backend-sub001/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, offset, limit int, channel, status string) ([]*model.Campaign, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// UpdateStatusWhere transitions status only when the current status equals
	// expected. Returns false when the row was already transitioned elsewhere.
	UpdateStatusWhere(ctx context.Context, id uuid.UUID, expected, status string) (bool, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

// Create inserts the campaign and its templates in one transaction.
func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()
	if c.Status == "" {
		c.Status = model.CampaignStatusActive
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO campaigns
            (id, name, channel, status, send_to_all, stage_ids, source_ids,
             use_custom_dates, message_limit, duration_days, send_time,
             send_on_weekends, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
    `,
		c.ID, c.Name, c.Channel, c.Status, c.SendToAll,
		pq.Array(c.StageIDs), pq.Array(c.SourceIDs),
		c.UseCustomDates, c.MessageLimit, c.DurationDays, c.SendTime,
		c.SendOnWeekends, c.CreatedBy, c.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, t := range c.Templates {
		_, err = tx.ExecContext(ctx, `
            INSERT INTO campaign_templates
                (campaign_id, sequence, subject, body, day_offset, send_date)
            VALUES ($1, $2, $3, $4, $5, $6)
        `, c.ID, t.Sequence, t.Subject, t.Body, t.DayOffset, t.SendDate)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *CampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	var c model.Campaign
	err := r.DB.QueryRowContext(ctx, `
        SELECT id, name, channel, status, send_to_all, stage_ids, source_ids,
               use_custom_dates, message_limit, duration_days, send_time,
               send_on_weekends, created_by, created_at, updated_at
        FROM campaigns WHERE id=$1
    `, id).Scan(
		&c.ID, &c.Name, &c.Channel, &c.Status, &c.SendToAll,
		pq.Array(&c.StageIDs), pq.Array(&c.SourceIDs),
		&c.UseCustomDates, &c.MessageLimit, &c.DurationDays, &c.SendTime,
		&c.SendOnWeekends, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewCampaignNotFound(id)
		}
		return nil, err
	}

	templates, err := r.templatesFor(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Templates = templates
	return &c, nil
}

func (r *CampaignRepository) templatesFor(ctx context.Context, campaignID uuid.UUID) ([]model.MessageTemplate, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT sequence, subject, body, day_offset, send_date
        FROM campaign_templates WHERE campaign_id=$1 ORDER BY sequence
    `, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []model.MessageTemplate
	for rows.Next() {
		var t model.MessageTemplate
		if err := rows.Scan(&t.Sequence, &t.Subject, &t.Body, &t.DayOffset, &t.SendDate); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, channel, status string) ([]*model.Campaign, int, error) {
	query := `
        SELECT id, name, channel, status, send_to_all, stage_ids, source_ids,
               use_custom_dates, message_limit, duration_days, send_time,
               send_on_weekends, created_by, created_at, updated_at
        FROM campaigns WHERE status != 'deleted'`
	args := []interface{}{}
	argPos := 1

	if channel != "" {
		query += fmt.Sprintf(" AND channel=$%d", argPos)
		args = append(args, channel)
		argPos++
	}
	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c := &model.Campaign{}
		err := rows.Scan(
			&c.ID, &c.Name, &c.Channel, &c.Status, &c.SendToAll,
			pq.Array(&c.StageIDs), pq.Array(&c.SourceIDs),
			&c.UseCustomDates, &c.MessageLimit, &c.DurationDays, &c.SendTime,
			&c.SendOnWeekends, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE status != 'deleted'`
	countArgs := []interface{}{}
	countPos := 1
	if channel != "" {
		countQuery += fmt.Sprintf(" AND channel=$%d", countPos)
		countArgs = append(countArgs, channel)
		countPos++
	}
	if status != "" {
		countQuery += fmt.Sprintf(" AND status=$%d", countPos)
		countArgs = append(countArgs, status)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	return err
}

func (r *CampaignRepository) UpdateStatusWhere(ctx context.Context, id uuid.UUID, expected, status string) (bool, error) {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`,
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

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
