package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"reminderd/internal/directory"
	"reminderd/internal/domain"
	"reminderd/internal/jobstore"
)

type fakeDirectory struct {
	events map[string]directory.Event
	users  map[string]directory.User
}

func (f *fakeDirectory) Event(ctx context.Context, id string) (directory.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return directory.Event{}, directory.ErrNotFound
	}
	return e, nil
}

func (f *fakeDirectory) User(ctx context.Context, id string) (directory.User, error) {
	u, ok := f.users[id]
	if !ok {
		return directory.User{}, directory.ErrNotFound
	}
	return u, nil
}

type sentMessage struct {
	to, subject, body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{to, subject, body})
	f.mu.Unlock()
	return nil
}

func newTestStore(t *testing.T) jobstore.Store {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	require.NoError(t, jobstore.EnsureSchema(db))
	return jobstore.NewSQLiteStore(db)
}

func testDirectory() *fakeDirectory {
	return &fakeDirectory{
		events: map[string]directory.Event{
			"evt_1": {ID: "evt_1", Name: "Science Fair", Date: time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)},
		},
		users: map[string]directory.User{
			"usr_1": {ID: "usr_1", FirstName: "Maya", Email: "maya@example.com"},
		},
	}
}

func createJob(t *testing.T, store jobstore.Store, eventID, userID string) domain.Job {
	t.Helper()
	job, err := store.Create(context.Background(), jobstore.JobSpec{
		RunAt:   time.Now(),
		EventID: eventID,
		UserID:  userID,
	})
	require.NoError(t, err)
	return job
}

func TestDispatchMarksSent(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{}
	d := New(testDirectory(), sender, store)
	job := createJob(t, store, "evt_1", "usr_1")

	d.Dispatch(context.Background(), job)

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	assert.Nil(t, got.ErrorMessage)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "maya@example.com", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].subject, "Science Fair")
	assert.Contains(t, sender.sent[0].body, "Maya")
}

func TestDispatchSenderFailure(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{err: errors.New("smtp: connection refused")}
	d := New(testDirectory(), sender, store)
	job := createJob(t, store, "evt_1", "usr_1")

	d.Dispatch(context.Background(), job)

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "delivery failed")
	assert.Contains(t, *got.ErrorMessage, "connection refused")
	assert.Nil(t, got.SentAt)
}

func TestDispatchMissingEvent(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{}
	d := New(testDirectory(), sender, store)
	job := createJob(t, store, "evt_gone", "usr_1")

	d.Dispatch(context.Background(), job)

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "evt_gone")
	assert.Empty(t, sender.sent)
}

func TestDispatchMissingUser(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{}
	d := New(testDirectory(), sender, store)
	job := createJob(t, store, "evt_1", "usr_gone")

	d.Dispatch(context.Background(), job)

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "usr_gone")
	assert.Empty(t, sender.sent)
}

func TestDispatchDoesNotReenterTerminalState(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{}
	d := New(testDirectory(), sender, store)
	job := createJob(t, store, "evt_1", "usr_1")

	d.Dispatch(context.Background(), job)
	first, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, first.SentAt)

	// a duplicate fire cannot overwrite the recorded terminal state
	sender.err = errors.New("smtp down")
	d.Dispatch(context.Background(), job)

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status)
	assert.Nil(t, got.ErrorMessage)
	assert.Equal(t, first.SentAt.Unix(), got.SentAt.Unix())
}
