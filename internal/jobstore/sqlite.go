package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"reminderd/internal/domain"
)

var (
	ErrNotFound = errors.New("job not found")
	ErrTerminal = errors.New("job already in a terminal state")
)

// EnsureSchema creates the jobs table if it doesn't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS jobs (
  id TEXT PRIMARY KEY,
  run_at DATETIME NOT NULL,
  reminder_type TEXT NOT NULL DEFAULT 'email',
  job_type TEXT NOT NULL DEFAULT 'reminder',
  status TEXT NOT NULL CHECK(status IN ('pending','sent','error')) DEFAULT 'pending',
  sent_at DATETIME,
  error_message TEXT,
  event_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_jobs_pending ON jobs(status, run_at);
`
	_, err := db.Exec(schema)
	return err
}

// JobSpec is the immutable part of a job, fixed at creation.
type JobSpec struct {
	RunAt        time.Time
	ReminderType string
	JobType      string
	EventID      string
	UserID       string
}

type Store interface {
	Create(ctx context.Context, spec JobSpec) (domain.Job, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkError(ctx context.Context, id, message string) error
	ListPending(ctx context.Context) ([]domain.Job, error)
	Get(ctx context.Context, id string) (domain.Job, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Job, error)
}

type sqliteStore struct{ db *sql.DB }

func NewSQLiteStore(db *sql.DB) Store { return &sqliteStore{db: db} }

func (s *sqliteStore) Create(ctx context.Context, spec JobSpec) (domain.Job, error) {
	if spec.EventID == "" || spec.UserID == "" {
		return domain.Job{}, fmt.Errorf("event id and user id are required")
	}
	if spec.ReminderType == "" {
		spec.ReminderType = domain.ReminderTypeEmail
	}
	if spec.JobType == "" {
		spec.JobType = domain.JobTypeReminder
	}

	now := time.Now().UTC()
	j := domain.Job{
		ID:           "job_" + uuid.NewString(),
		RunAt:        spec.RunAt.UTC(),
		ReminderType: spec.ReminderType,
		JobType:      spec.JobType,
		Status:       domain.StatusPending,
		EventID:      spec.EventID,
		UserID:       spec.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs (id,run_at,reminder_type,job_type,status,event_id,user_id,created_at,updated_at)
VALUES (?,?,?,?,'pending',?,?,?,?)
`, j.ID, j.RunAt, j.ReminderType, j.JobType, j.EventID, j.UserID, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

func (s *sqliteStore) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE jobs SET status='sent', sent_at=?, updated_at=CURRENT_TIMESTAMP
WHERE id=? AND status='pending'`, sentAt.UTC(), id)
	if err != nil {
		return err
	}
	return s.checkUpdated(ctx, res, id)
}

func (s *sqliteStore) MarkError(ctx context.Context, id, message string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE jobs SET status='error', error_message=?, updated_at=CURRENT_TIMESTAMP
WHERE id=? AND status='pending'`, message, id)
	if err != nil {
		return err
	}
	return s.checkUpdated(ctx, res, id)
}

// checkUpdated distinguishes an unknown id from an attempted second
// terminal transition; neither may silently succeed.
func (s *sqliteStore) checkUpdated(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id=?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrTerminal
}

func (s *sqliteStore) ListPending(ctx context.Context) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id,run_at,reminder_type,job_type,status,sent_at,error_message,event_id,user_id,created_at,updated_at
FROM jobs WHERE status='pending' ORDER BY run_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *sqliteStore) Get(ctx context.Context, id string) (domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id,run_at,reminder_type,job_type,status,sent_at,error_message,event_id,user_id,created_at,updated_at
FROM jobs WHERE id=?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return domain.Job{}, ErrNotFound
	}
	return j, err
}

func (s *sqliteStore) ListRecent(ctx context.Context, limit int) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id,run_at,reminder_type,job_type,status,sent_at,error_message,event_id,user_id,created_at,updated_at
FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (domain.Job, error) {
	var j domain.Job
	var sentAt sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&j.ID, &j.RunAt, &j.ReminderType, &j.JobType, &j.Status, &sentAt, &errMsg, &j.EventID, &j.UserID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return domain.Job{}, err
	}
	if sentAt.Valid {
		t := sentAt.Time
		j.SentAt = &t
	}
	if errMsg.Valid {
		m := errMsg.String
		j.ErrorMessage = &m
	}
	return j, nil
}

func scanJobs(rows *sql.Rows) ([]domain.Job, error) {
	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
