package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"reminderd/internal/directory"
	"reminderd/internal/domain"
	"reminderd/internal/jobstore"
	"reminderd/internal/mailer"
)

var (
	ErrReferenceMissing = errors.New("referenced record no longer exists")
	ErrDeliveryFailed   = errors.New("message delivery failed")
)

// Dispatcher is the terminal action bound to a fired timer: resolve the
// referenced entities, render the message, send it, and record the job's
// terminal status. Safe for concurrent use across distinct job ids.
type Dispatcher struct {
	dir    directory.Reader
	sender mailer.Sender
	store  jobstore.Store
}

func New(dir directory.Reader, sender mailer.Sender, store jobstore.Store) *Dispatcher {
	return &Dispatcher{dir: dir, sender: sender, store: store}
}

// Dispatch never returns an error: at fire time there is no caller waiting.
// Failures become the job's terminal error status and are otherwise
// swallowed; operators inspect error jobs out-of-band.
func (d *Dispatcher) Dispatch(ctx context.Context, job domain.Job) {
	if err := d.deliver(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Str("event_id", job.EventID).Msg("reminder dispatch failed")
		if uerr := d.store.MarkError(ctx, job.ID, err.Error()); uerr != nil {
			log.Error().Err(uerr).Str("job_id", job.ID).Msg("record job error status")
		}
		return
	}
	if err := d.store.MarkSent(ctx, job.ID, time.Now().UTC()); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("record job sent status")
		return
	}
	log.Info().Str("job_id", job.ID).Str("event_id", job.EventID).Str("user_id", job.UserID).Msg("reminder sent")
}

func (d *Dispatcher) deliver(ctx context.Context, job domain.Job) error {
	event, err := d.dir.Event(ctx, job.EventID)
	if errors.Is(err, directory.ErrNotFound) {
		return fmt.Errorf("%w: event %s", ErrReferenceMissing, job.EventID)
	}
	if err != nil {
		return fmt.Errorf("load event %s: %w", job.EventID, err)
	}

	user, err := d.dir.User(ctx, job.UserID)
	if errors.Is(err, directory.ErrNotFound) {
		return fmt.Errorf("%w: user %s", ErrReferenceMissing, job.UserID)
	}
	if err != nil {
		return fmt.Errorf("load user %s: %w", job.UserID, err)
	}

	subject, body := renderReminder(user, event)
	if err := d.sender.Send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

func renderReminder(u directory.User, e directory.Event) (subject, body string) {
	subject = fmt.Sprintf("Reminder: your event %q is coming up", e.Name)
	body = fmt.Sprintf(
		"Hey %s,\n\nJust a quick reminder that %q happens at %s.\n\nSee you there!",
		u.FirstName, e.Name, e.Date.Format(time.RFC1123),
	)
	return subject, body
}
