package mailer

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Sender delivers one rendered message to one recipient. Retry and backoff
// are the sender's own concern; callers only see success or failure.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Log is a dev sender that writes the message to the log instead of
// delivering it. Used when no SMTP credentials are configured.
type Log struct{}

func (Log) Send(ctx context.Context, to, subject, body string) error {
	log.Info().Str("to", to).Str("subject", subject).Msg("reminder email (dry run)")
	return nil
}
