// Package reminder exposes the single write path into the scheduling
// subsystem: compute a fire time, persist the job, arm its timer.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"reminderd/internal/domain"
	"reminderd/internal/jobstore"
	"reminderd/internal/schedule"
)

var ErrMissingReference = errors.New("user id and event id are required")

type Service struct {
	store  jobstore.Store
	engine *schedule.Engine
	lead   time.Duration
}

func NewService(store jobstore.Store, engine *schedule.Engine, lead time.Duration) *Service {
	return &Service{store: store, engine: engine, lead: lead}
}

// ScheduleReminder creates and arms a reminder job firing lead before
// eventTime. Two calls with identical arguments create two independent
// jobs; de-duplication is the caller's concern.
func (s *Service) ScheduleReminder(ctx context.Context, userID, eventID string, eventTime time.Time) (domain.Job, error) {
	if userID == "" || eventID == "" {
		return domain.Job{}, ErrMissingReference
	}

	runAt, err := schedule.FireTime(eventTime, s.lead, time.Now())
	if err != nil {
		return domain.Job{}, err
	}

	job, err := s.store.Create(ctx, jobstore.JobSpec{
		RunAt:        runAt,
		ReminderType: domain.ReminderTypeEmail,
		JobType:      domain.JobTypeReminder,
		EventID:      eventID,
		UserID:       userID,
	})
	if err != nil {
		return domain.Job{}, fmt.Errorf("persist job: %w", err)
	}

	s.engine.Arm(job)
	log.Info().
		Str("job_id", job.ID).
		Str("event_id", eventID).
		Str("user_id", userID).
		Time("run_at", job.RunAt).
		Msg("reminder scheduled")
	return job, nil
}

// CancelReminder disarms a scheduled job's timer. The persisted record is
// left as-is for audit. Reports whether a timer was armed.
func (s *Service) CancelReminder(id string) bool {
	return s.engine.Cancel(id)
}

// Confirmation renders the acknowledgement returned to the caller after a
// successful schedule.
func (s *Service) Confirmation(eventName string, eventTime time.Time) string {
	return fmt.Sprintf(
		"You have successfully scheduled for %s on %s. We will send a reminder %s before the event occurs. We hope to see you there!",
		eventName, eventTime.Format("January 2, 2006 at 3:04 PM MST"), formatLead(s.lead),
	)
}

func formatLead(lead time.Duration) string {
	if lead == 24*time.Hour {
		return "one day"
	}
	return lead.String()
}
