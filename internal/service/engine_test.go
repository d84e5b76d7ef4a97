package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/skillang/leadg-crm-backend-sub001/internal/channel"
	"github.com/skillang/leadg-crm-backend-sub001/internal/model"
	"github.com/skillang/leadg-crm-backend-sub001/internal/queue"
)

// engine wires every component against shared in-memory stores, the way
// cmd/server wires them against postgres.
type engine struct {
	clock       *fakeClock
	campaigns   *memCampaignRepo
	enrollments *memEnrollmentRepo
	leads       *memLeadRepo
	jobs        *memJobRepo
	publisher   *queue.MemoryPublisher
	sender      *fakeSender

	campaignSvc *CampaignService
	enrollSvc   *EnrollmentService
	executor    *Executor
	monitor     *CriteriaMonitor
	completion  *CompletionDetector
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	// A Monday morning, before the default 09:00 send time.
	clock := newFakeClock(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	campaigns := newMemCampaignRepo()
	enrollments := newMemEnrollmentRepo()
	leads := newMemLeadRepo(enrollments)
	jobs := newMemJobRepo()
	publisher := queue.NewMemoryPublisher()
	sender := &fakeSender{}
	logger := zap.NewNop()

	completion := &CompletionDetector{
		CampaignRepo:   campaigns,
		EnrollmentRepo: enrollments,
		JobRepo:        jobs,
		Publisher:      publisher,
		Logger:         logger,
	}

	return &engine{
		clock:       clock,
		campaigns:   campaigns,
		enrollments: enrollments,
		leads:       leads,
		jobs:        jobs,
		publisher:   publisher,
		sender:      sender,
		completion:  completion,
		campaignSvc: &CampaignService{
			CampaignRepo:   campaigns,
			EnrollmentRepo: enrollments,
			JobRepo:        jobs,
			LeadRepo:       leads,
			Logger:         logger,
			Clock:          clock.Now,
		},
		enrollSvc: &EnrollmentService{
			CampaignRepo:   campaigns,
			LeadRepo:       leads,
			EnrollmentRepo: enrollments,
			JobRepo:        jobs,
			Publisher:      publisher,
			Logger:         logger,
			Clock:          clock.Now,
		},
		executor: &Executor{
			CampaignRepo:   campaigns,
			LeadRepo:       leads,
			EnrollmentRepo: enrollments,
			JobRepo:        jobs,
			Senders:        channel.Registry{model.ChannelEmail: sender, model.ChannelChat: sender},
			Publisher:      publisher,
			Completion:     completion,
			Logger:         logger,
			Limiter:        rate.NewLimiter(rate.Inf, 0),
			Clock:          clock.Now,
			BatchSize:      100,
			RetryDelay:     5 * time.Minute,
		},
		monitor: &CriteriaMonitor{
			CampaignRepo:   campaigns,
			LeadRepo:       leads,
			EnrollmentRepo: enrollments,
			JobRepo:        jobs,
			Publisher:      publisher,
			Logger:         logger,
		},
	}
}

func (e *engine) addCampaign(t *testing.T, mutate func(*model.Campaign)) *model.Campaign {
	t.Helper()
	c := &model.Campaign{
		ID:             uuid.New(),
		Name:           "spring outreach",
		Channel:        model.ChannelEmail,
		Status:         model.CampaignStatusActive,
		SendToAll:      true,
		MessageLimit:   2,
		DurationDays:   10,
		SendTime:       "09:00",
		SendOnWeekends: true,
		Templates: []model.MessageTemplate{
			{Sequence: 1, Subject: "hello {first_name}", Body: "intro for {first_name}"},
			{Sequence: 2, Subject: "following up", Body: "checking in, {first_name}"},
		},
	}
	if mutate != nil {
		mutate(c)
	}
	require.NoError(t, e.campaigns.Create(context.Background(), c))
	return c
}

func (e *engine) addLead(first, email, phone, stage, source string) uuid.UUID {
	return e.leads.add(model.Lead{
		FirstName: first,
		Email:     email,
		Phone:     phone,
		Stage:     stage,
		Source:    source,
	})
}

// The full lifecycle: create, enroll, execute both sends, complete.
func TestCampaignLifecycleEndToEnd(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	c := e.addCampaign(t, nil)
	leadID := e.addLead("Alice", "alice@example.com", "", "New", "Website")

	result, err := e.enrollSvc.Enroll(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.EnrolledCount)
	assert.Equal(t, 1, result.TotalMatching)

	enrollment := e.enrollments.byCampaignAndLead(c.ID, leadID)
	require.NotNil(t, enrollment)

	jobs := e.jobs.byEnrollment(enrollment.ID)
	require.Len(t, jobs, 2)
	// Offsets 0 and 1 at the 09:00 send time.
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), jobs[0].ScheduledAt)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), jobs[1].ScheduledAt)

	// Nothing due before the send time.
	require.NoError(t, e.executor.ProcessDueJobs(ctx))
	assert.Equal(t, 0, e.sender.sentCount())

	// First message.
	e.clock.Advance(2 * time.Hour)
	require.NoError(t, e.executor.ProcessDueJobs(ctx))
	assert.Equal(t, 1, e.sender.sentCount())

	enrollment = e.enrollments.byCampaignAndLead(c.ID, leadID)
	assert.Equal(t, 1, enrollment.MessagesSent)
	require.NotNil(t, enrollment.LastSentAt)

	// Second message a day later.
	e.clock.Advance(24 * time.Hour)
	require.NoError(t, e.executor.ProcessDueJobs(ctx))
	assert.Equal(t, 2, e.sender.sentCount())

	for _, j := range e.jobs.byEnrollment(enrollment.ID) {
		assert.Equal(t, model.JobStatusCompleted, j.Status)
	}

	enrollment = e.enrollments.byCampaignAndLead(c.ID, leadID)
	assert.Equal(t, model.EnrollmentStatusCompleted, enrollment.Status)

	final, err := e.campaigns.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusCompleted, final.Status)

	// Personalization reached the adapter.
	assert.Equal(t, "intro for Alice", e.sender.sent[0].Body)
	assert.Equal(t, "alice@example.com", e.sender.sent[0].To)
}
