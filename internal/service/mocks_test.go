package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillang/leadg-crm-backend-sub001/internal/apperrors"
	"github.com/skillang/leadg-crm-backend-sub001/internal/channel"
	"github.com/skillang/leadg-crm-backend-sub001/internal/model"
	"github.com/skillang/leadg-crm-backend-sub001/internal/repository"
)

// fakeClock lets tests advance time past scheduled instants.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*model.Campaign
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{campaigns: map[uuid.UUID]*model.Campaign{}}
}

func (r *memCampaignRepo) Create(ctx context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = model.CampaignStatusActive
	}
	c.CreatedAt = time.Now().UTC()
	r.campaigns[c.ID] = c
	return nil
}

func (r *memCampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, apperrors.NewCampaignNotFound(id)
	}
	copied := *c
	return &copied, nil
}

func (r *memCampaignRepo) ListCampaigns(ctx context.Context, offset, limit int, channelName, status string) ([]*model.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []*model.Campaign{}
	for _, c := range r.campaigns {
		if c.Status == model.CampaignStatusDeleted {
			continue
		}
		if channelName != "" && c.Channel != channelName {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		copied := *c
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if offset >= len(matched) {
		return []*model.Campaign{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *memCampaignRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		c.Status = status
	}
	return nil
}

func (r *memCampaignRepo) UpdateStatusWhere(ctx context.Context, id uuid.UUID, expected, status string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.Status != expected {
		return false, nil
	}
	c.Status = status
	return true, nil
}

type memEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[uuid.UUID]*model.Enrollment
}

func newMemEnrollmentRepo() *memEnrollmentRepo {
	return &memEnrollmentRepo{enrollments: map[uuid.UUID]*model.Enrollment{}}
}

func (r *memEnrollmentRepo) Create(ctx context.Context, e *model.Enrollment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.enrollments {
		if existing.CampaignID == e.CampaignID && existing.LeadID == e.LeadID {
			return false, nil
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = model.EnrollmentStatusActive
	}
	copied := *e
	r.enrollments[e.ID] = &copied
	return true, nil
}

func (r *memEnrollmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enrollments[id]
	if !ok {
		return nil, nil
	}
	copied := *e
	return &copied, nil
}

func (r *memEnrollmentRepo) ListActiveByLead(ctx context.Context, leadID uuid.UUID) ([]*model.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []*model.Enrollment{}
	for _, e := range r.enrollments {
		if e.LeadID == leadID && e.Status == model.EnrollmentStatusActive {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *memEnrollmentRepo) UpdateStatusWhere(ctx context.Context, id uuid.UUID, expected, status string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enrollments[id]
	if !ok || e.Status != expected {
		return false, nil
	}
	e.Status = status
	return true, nil
}

func (r *memEnrollmentRepo) TransitionAllByCampaign(ctx context.Context, campaignID uuid.UUID, expected, status string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.enrollments {
		if e.CampaignID == campaignID && e.Status == expected {
			e.Status = status
			n++
		}
	}
	return n, nil
}

func (r *memEnrollmentRepo) IncrementProgress(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.enrollments[id]; ok {
		e.MessagesSent++
		e.CurrentSequence++
		at := sentAt
		e.LastSentAt = &at
	}
	return nil
}

func (r *memEnrollmentRepo) StatsByCampaign(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := map[string]int{}
	for _, e := range r.enrollments {
		if e.CampaignID == campaignID {
			stats[e.Status]++
		}
	}
	return stats, nil
}

func (r *memEnrollmentRepo) byCampaignAndLead(campaignID, leadID uuid.UUID) *model.Enrollment {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.enrollments {
		if e.CampaignID == campaignID && e.LeadID == leadID {
			copied := *e
			return &copied
		}
	}
	return nil
}

type memLeadRepo struct {
	mu          sync.Mutex
	leads       map[uuid.UUID]*model.Lead
	stages      map[string]string // id -> display name
	sources     map[string]string
	enrollments *memEnrollmentRepo
}

func newMemLeadRepo(enrollments *memEnrollmentRepo) *memLeadRepo {
	return &memLeadRepo{
		leads:       map[uuid.UUID]*model.Lead{},
		stages:      map[string]string{},
		sources:     map[string]string{},
		enrollments: enrollments,
	}
}

func (r *memLeadRepo) add(l model.Lead) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	copied := l
	r.leads[l.ID] = &copied
	return l.ID
}

func (r *memLeadRepo) setAttributes(id uuid.UUID, stage, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.leads[id]; ok {
		l.Stage = stage
		l.Source = source
	}
}

func (r *memLeadRepo) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.leads, id)
}

func (r *memLeadRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

func (r *memLeadRepo) FindMatching(ctx context.Context, filter repository.MatchFilter, campaignID uuid.UUID, channelName string) ([]model.Lead, error) {
	r.mu.Lock()
	leads := make([]*model.Lead, 0, len(r.leads))
	for _, l := range r.leads {
		leads = append(leads, l)
	}
	r.mu.Unlock()

	result := []model.Lead{}
	for _, l := range leads {
		if l.Address(channelName) == "" {
			continue
		}
		if r.enrollments.byCampaignAndLead(campaignID, l.ID) != nil {
			continue
		}
		if !filter.SendToAll {
			if filter.StagesConfigured && !containsString(filter.Stages, l.Stage) {
				continue
			}
			if filter.SourcesConfigured && !containsString(filter.Sources, l.Source) {
				continue
			}
		}
		result = append(result, *l)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result, nil
}

func (r *memLeadRepo) ResolveStageNames(ctx context.Context, ids []string) ([]string, error) {
	return r.resolve(r.stages, ids), nil
}

func (r *memLeadRepo) ResolveSourceNames(ctx context.Context, ids []string) ([]string, error) {
	return r.resolve(r.sources, ids), nil
}

func (r *memLeadRepo) resolve(table map[string]string, ids []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, id := range ids {
		if name, ok := table[id]; ok {
			names = append(names, name)
		}
	}
	return names
}

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*model.MessageJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[uuid.UUID]*model.MessageJob{}}
}

func (r *memJobRepo) CreateBatch(ctx context.Context, jobs []*model.MessageJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range jobs {
		if j.ID == uuid.Nil {
			j.ID = uuid.New()
		}
		copied := *j
		r.jobs[j.ID] = &copied
	}
	return nil
}

func (r *memJobRepo) DueJobs(ctx context.Context, now time.Time, limit int) ([]*model.MessageJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	due := []*model.MessageJob{}
	for _, j := range r.jobs {
		if j.Status == model.JobStatusPending && !j.ScheduledAt.After(now) {
			copied := *j
			due = append(due, &copied)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(due[j].ScheduledAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memJobRepo) MarkProcessing(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != model.JobStatusPending {
		return false, nil
	}
	j.Status = model.JobStatusProcessing
	t := at
	j.ExecutedAt = &t
	return true, nil
}

func (r *memJobRepo) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != model.JobStatusProcessing {
		return false, nil
	}
	j.Status = model.JobStatusCompleted
	j.LastError = ""
	t := at
	j.CompletedAt = &t
	return true, nil
}

func (r *memJobRepo) RescheduleForRetry(ctx context.Context, id uuid.UUID, at time.Time, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != model.JobStatusProcessing {
		return nil
	}
	j.Status = model.JobStatusPending
	j.ScheduledAt = at
	j.Attempts++
	j.LastError = lastError
	return nil
}

func (r *memJobRepo) Requeue(ctx context.Context, id uuid.UUID, at time.Time, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != model.JobStatusProcessing {
		return nil
	}
	j.Status = model.JobStatusPending
	j.ScheduledAt = at
	j.LastError = lastError
	return nil
}

func (r *memJobRepo) FailPermanently(ctx context.Context, id uuid.UUID, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != model.JobStatusProcessing {
		return nil
	}
	j.Status = model.JobStatusFailed
	j.Attempts++
	j.LastError = lastError
	return nil
}

func (r *memJobRepo) CancelJob(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || (j.Status != model.JobStatusPending && j.Status != model.JobStatusProcessing) {
		return false, nil
	}
	j.Status = model.JobStatusCancelled
	return true, nil
}

func (r *memJobRepo) CancelPendingByEnrollment(ctx context.Context, enrollmentID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, j := range r.jobs {
		if j.EnrollmentID == enrollmentID && j.Status == model.JobStatusPending {
			j.Status = model.JobStatusCancelled
			n++
		}
	}
	return n, nil
}

func (r *memJobRepo) CountByCampaign(ctx context.Context, campaignID uuid.UUID) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total, pending int
	for _, j := range r.jobs {
		if j.CampaignID != campaignID {
			continue
		}
		total++
		if j.Status == model.JobStatusPending || j.Status == model.JobStatusProcessing {
			pending++
		}
	}
	return total, pending, nil
}

func (r *memJobRepo) StatsByCampaign(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := map[string]int{}
	for _, j := range r.jobs {
		if j.CampaignID == campaignID {
			stats[j.Status]++
		}
	}
	return stats, nil
}

func (r *memJobRepo) byEnrollment(enrollmentID uuid.UUID) []*model.MessageJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := []*model.MessageJob{}
	for _, j := range r.jobs {
		if j.EnrollmentID == enrollmentID {
			copied := *j
			jobs = append(jobs, &copied)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].SequenceOrder < jobs[j].SequenceOrder })
	return jobs
}

var errAdapterDown = errors.New("adapter down")

// fakeSender fails the first `failures` sends, then succeeds.
type fakeSender struct {
	mu       sync.Mutex
	failures int
	sent     []channel.Message
}

func (s *fakeSender) Send(ctx context.Context, msg channel.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errAdapterDown
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

var (
	_ repository.CampaignRepositoryInterface   = (*memCampaignRepo)(nil)
	_ repository.LeadRepositoryInterface       = (*memLeadRepo)(nil)
	_ repository.EnrollmentRepositoryInterface = (*memEnrollmentRepo)(nil)
	_ repository.MessageJobRepositoryInterface = (*memJobRepo)(nil)
	_ channel.Sender                           = (*fakeSender)(nil)
)
