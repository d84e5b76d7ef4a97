// Package schedule computes per-enrollment send schedules. Day offsets follow
// a decay distribution: sends cluster at the start of the campaign window and
// thin out towards the end.
package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillang/leadg-crm-backend-sub001/internal/model"
)

// lateGap is the constant day gap applied after the sixth message.
const lateGap = 3

// DecayOffsets returns the day offsets for n messages spread over
// durationDays. The first message lands on day 0 and the gap to the next
// message grows 1, 2, 3, 4, 5 for messages two through six, then stays at 3.
// Offsets are strictly increasing and always inside [0, durationDays-1]:
// whenever the natural gap would run past the window, the offset is pulled
// back just far enough to leave one day for each remaining message.
func DecayOffsets(n, durationDays int) []int {
	if n <= 0 {
		return nil
	}
	offsets := make([]int, 0, n)
	offsets = append(offsets, 0)
	if n == 1 {
		return offsets
	}

	day := 0
	for i := 1; i < n; i++ {
		gap := i
		if gap > 5 {
			gap = lateGap
		}
		day += gap

		// Leave room for the messages still to come.
		if limit := durationDays - n + i; day > limit {
			day = limit
		}
		if day > durationDays-1 {
			day = durationDays - 1
		}
		if day < 0 {
			day = 0
		}
		offsets = append(offsets, day)
	}
	return offsets
}

// SendInstants turns a campaign's cadence into absolute send instants for an
// enrollment that started at enrolledAt. Offset cadence anchors each offset on
// the enrollment date at the campaign's daily send time; custom-date cadence
// uses each template's explicit date at the same send time.
func SendInstants(c *model.Campaign, enrolledAt time.Time) []time.Time {
	if c.UseCustomDates {
		instants := make([]time.Time, 0, len(c.Templates))
		for _, t := range c.Templates {
			if t.SendDate == nil {
				continue
			}
			instants = append(instants, adjustWeekend(atSendTime(*t.SendDate, c.SendTime), c.SendOnWeekends))
		}
		return instants
	}

	offsets := DecayOffsets(c.MessageLimit, c.DurationDays)
	instants := make([]time.Time, 0, len(offsets))
	for _, off := range offsets {
		day := enrolledAt.UTC().AddDate(0, 0, off)
		instants = append(instants, adjustWeekend(atSendTime(day, c.SendTime), c.SendOnWeekends))
	}
	return instants
}

// BuildJobs generates the full message job sequence for one enrollment.
// Templates are cycled (sequence index modulo template count), so a campaign
// may send more messages than it has templates.
func BuildJobs(c *model.Campaign, e *model.Enrollment, now time.Time) []*model.MessageJob {
	instants := SendInstants(c, e.EnrolledAt)
	jobs := make([]*model.MessageJob, 0, len(instants))
	for i, at := range instants {
		tmpl := c.Templates[i%len(c.Templates)]
		jobs = append(jobs, &model.MessageJob{
			ID:               uuid.New(),
			CampaignID:       c.ID,
			EnrollmentID:     e.ID,
			LeadID:           e.LeadID,
			Channel:          c.Channel,
			TemplateSequence: tmpl.Sequence,
			SequenceOrder:    i + 1,
			ScheduledAt:      at,
			Status:           model.JobStatusPending,
			MaxAttempts:      model.DefaultMaxAttempts,
			CreatedAt:        now,
		})
	}
	return jobs
}

// Preview returns the instants a lead enrolled at `from` would receive
// messages. CreateCampaign exposes this so the operator sees the same dates
// the generator will use.
func Preview(c *model.Campaign, from time.Time) []time.Time {
	return SendInstants(c, from)
}

// atSendTime places an instant on day's date at the campaign's daily send
// time. sendTime is "HH:MM" in UTC; a malformed value falls back to 09:00.
func atSendTime(day time.Time, sendTime string) time.Time {
	t, err := time.Parse("15:04", sendTime)
	if err != nil {
		t = time.Date(0, 1, 1, 9, 0, 0, 0, time.UTC)
	}
	d := day.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
}

// adjustWeekend pushes Saturday/Sunday instants forward to the next Monday
// when weekend sending is disabled.
func adjustWeekend(at time.Time, sendOnWeekends bool) time.Time {
	if sendOnWeekends {
		return at
	}
	switch at.Weekday() {
	case time.Saturday:
		return at.AddDate(0, 0, 2)
	case time.Sunday:
		return at.AddDate(0, 0, 1)
	}
	return at
}
