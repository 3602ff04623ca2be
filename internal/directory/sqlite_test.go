package directory

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestReader(t *testing.T) (Reader, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "entities.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	require.NoError(t, EnsureSchema(db))
	return NewSQLiteReader(db), db
}

func TestReadEventAndUser(t *testing.T) {
	r, db := newTestReader(t)
	date := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

	_, err := db.Exec(`INSERT INTO events (id,name,date,location) VALUES ('evt_1','Science Fair',?,'Community Hall')`, date)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (id,first_name,email) VALUES ('usr_1','Maya','maya@example.com')`)
	require.NoError(t, err)

	ev, err := r.Event(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.Equal(t, "Science Fair", ev.Name)
	assert.Equal(t, "Community Hall", ev.Location)
	assert.True(t, ev.Date.Equal(date))

	u, err := r.User(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "Maya", u.FirstName)
	assert.Equal(t, "maya@example.com", u.Email)
}

func TestReadMissingRecords(t *testing.T) {
	r, _ := newTestReader(t)

	_, err := r.Event(context.Background(), "evt_gone")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.User(context.Background(), "usr_gone")
	assert.ErrorIs(t, err, ErrNotFound)
}
