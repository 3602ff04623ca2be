package schedule

import (
	"errors"
	"time"
)

var ErrInvalidTimestamp = errors.New("event time cannot be resolved to an absolute instant")

// MinimumDelay is the floor applied when a computed fire time has already
// passed: the reminder still fires, shortly after scheduling, instead of
// being armed in the past or silently skipped.
const MinimumDelay = 10 * time.Second

// FireTime computes when a reminder for an event at eventTime should fire,
// lead before the event, normalized to UTC.
func FireTime(eventTime time.Time, lead time.Duration, now time.Time) (time.Time, error) {
	if eventTime.IsZero() {
		return time.Time{}, ErrInvalidTimestamp
	}
	now = now.UTC()
	fire := eventTime.UTC().Add(-lead)
	if !fire.After(now) {
		fire = now.Add(MinimumDelay)
	}
	return fire, nil
}
