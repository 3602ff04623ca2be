package domain

import "time"

type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusSent    JobStatus = "sent"
	StatusError   JobStatus = "error"
)

const (
	ReminderTypeEmail = "email"
	JobTypeReminder   = "reminder"
)

// Job is one scheduled, single-fire reminder. RunAt and the business
// references are immutable after creation; only the status fields change,
// exactly once, when the job reaches a terminal state.
type Job struct {
	ID           string
	RunAt        time.Time
	ReminderType string
	JobType      string
	Status       JobStatus
	SentAt       *time.Time
	ErrorMessage *string
	EventID      string
	UserID       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s JobStatus) Terminal() bool {
	return s == StatusSent || s == StatusError
}
