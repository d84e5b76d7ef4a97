package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/skillang/leadg-crm-backend-sub001/internal/model"
)

// MatchFilter is the audience filter resolved to display names. OR applies
// within a family and AND across families. A configured family constrains
// even when its ids resolved to no names; only an unconfigured family is
// unconstrained.
type MatchFilter struct {
	SendToAll         bool
	StagesConfigured  bool
	SourcesConfigured bool
	Stages            []string
	Sources           []string
}

type LeadRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Lead, error)
	// FindMatching returns leads matching the filter that have a contact
	// address for the channel and are not yet enrolled in the campaign.
	FindMatching(ctx context.Context, filter MatchFilter, campaignID uuid.UUID, channel string) ([]model.Lead, error)
	ResolveStageNames(ctx context.Context, ids []string) ([]string, error)
	ResolveSourceNames(ctx context.Context, ids []string) ([]string, error)
}

type LeadRepository struct {
	DB *sql.DB
}

// GetByID fetches a lead by ID; nil if absent.
func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	var l model.Lead
	err := r.DB.QueryRowContext(ctx, `
        SELECT id, first_name, last_name, email, phone, stage, source
        FROM leads WHERE id=$1
    `, id).Scan(&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.Stage, &l.Source)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (r *LeadRepository) FindMatching(ctx context.Context, filter MatchFilter, campaignID uuid.UUID, channel string) ([]model.Lead, error) {
	addressColumn := "email"
	if channel == model.ChannelChat {
		addressColumn = "phone"
	}

	query := `
        SELECT l.id, l.first_name, l.last_name, l.email, l.phone, l.stage, l.source
        FROM leads l
        WHERE l.` + addressColumn + ` != ''
          AND NOT EXISTS (
              SELECT 1 FROM enrollments e
              WHERE e.campaign_id = $1 AND e.lead_id = l.id
          )`
	args := []interface{}{campaignID}
	argPos := 2

	if !filter.SendToAll {
		// An empty pq.Array here is deliberate: ANY over an empty set is
		// false, so a configured family with no resolved names matches nobody.
		if filter.StagesConfigured {
			query += fmt.Sprintf(" AND l.stage = ANY($%d)", argPos)
			args = append(args, pq.Array(filter.Stages))
			argPos++
		}
		if filter.SourcesConfigured {
			query += fmt.Sprintf(" AND l.source = ANY($%d)", argPos)
			args = append(args, pq.Array(filter.Sources))
			argPos++
		}
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []model.Lead{}
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.Stage, &l.Source); err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (r *LeadRepository) ResolveStageNames(ctx context.Context, ids []string) ([]string, error) {
	return r.resolveNames(ctx, "stages", ids)
}

func (r *LeadRepository) ResolveSourceNames(ctx context.Context, ids []string) ([]string, error) {
	return r.resolveNames(ctx, "sources", ids)
}

func (r *LeadRepository) resolveNames(ctx context.Context, table string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT name FROM `+table+` WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
