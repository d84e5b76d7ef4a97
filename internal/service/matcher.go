// internal/service/matcher.go
package service

import (
	"context"
	"fmt"

	"github.com/skillang/leadg-crm-backend-sub001/internal/model"
	"github.com/skillang/leadg-crm-backend-sub001/internal/repository"
)

// MatchCriteria is a campaign's audience filter resolved to current display
// names. Both the executor's inline re-check and the criteria monitor evaluate
// enrollments through this one predicate, so the two paths cannot diverge.
// The Configured flags distinguish a family that was never configured from one
// whose ids resolved to nothing; the latter still constrains and matches no
// lead.
type MatchCriteria struct {
	SendToAll         bool
	StagesConfigured  bool
	SourcesConfigured bool
	Stages            []string
	Sources           []string
}

// Matches reports whether a lead's current attributes qualify: any-of within
// a configured family, all configured families must hold.
func (c MatchCriteria) Matches(attrs model.LeadAttributes) bool {
	if c.SendToAll {
		return true
	}
	if !c.StagesConfigured && !c.SourcesConfigured {
		return false
	}
	if c.StagesConfigured && !containsString(c.Stages, attrs.Stage) {
		return false
	}
	if c.SourcesConfigured && !containsString(c.Sources, attrs.Source) {
		return false
	}
	return true
}

// Filter converts the criteria into the repository's query filter.
func (c MatchCriteria) Filter() repository.MatchFilter {
	return repository.MatchFilter{
		SendToAll:         c.SendToAll,
		StagesConfigured:  c.StagesConfigured,
		SourcesConfigured: c.SourcesConfigured,
		Stages:            c.Stages,
		Sources:           c.Sources,
	}
}

// ResolveCriteria turns a campaign's stage/source id references into current
// display names. Renames in the CRM's stage/source config take effect on the
// next evaluation.
func ResolveCriteria(ctx context.Context, leads repository.LeadRepositoryInterface, c *model.Campaign) (MatchCriteria, error) {
	if c.SendToAll {
		return MatchCriteria{SendToAll: true}, nil
	}

	criteria := MatchCriteria{}
	var err error
	if len(c.StageIDs) > 0 {
		criteria.StagesConfigured = true
		criteria.Stages, err = leads.ResolveStageNames(ctx, c.StageIDs)
		if err != nil {
			return MatchCriteria{}, fmt.Errorf("resolve stages: %w", err)
		}
	}
	if len(c.SourceIDs) > 0 {
		criteria.SourcesConfigured = true
		criteria.Sources, err = leads.ResolveSourceNames(ctx, c.SourceIDs)
		if err != nil {
			return MatchCriteria{}, fmt.Errorf("resolve sources: %w", err)
		}
	}
	return criteria, nil
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
