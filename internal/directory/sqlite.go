// Package directory reads the business entities a reminder refers to.
// This subsystem never writes these records; it only resolves them by id
// at fire time.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

type Event struct {
	ID       string
	Name     string
	Date     time.Time
	Location string
}

type User struct {
	ID        string
	FirstName string
	Email     string
}

type Reader interface {
	Event(ctx context.Context, id string) (Event, error)
	User(ctx context.Context, id string) (User, error)
}

// EnsureSchema creates the entity tables if absent. In a deployment where
// the business database already exists this is a no-op.
func EnsureSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS events (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  date DATETIME NOT NULL,
  location TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  first_name TEXT NOT NULL,
  email TEXT NOT NULL
);
`
	_, err := db.Exec(schema)
	return err
}

type sqliteReader struct{ db *sql.DB }

func NewSQLiteReader(db *sql.DB) Reader { return &sqliteReader{db: db} }

func (r *sqliteReader) Event(ctx context.Context, id string) (Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id,name,date,location FROM events WHERE id=?`, id)
	var e Event
	err := row.Scan(&e.ID, &e.Name, &e.Date, &e.Location)
	if err == sql.ErrNoRows {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, err
	}
	return e, nil
}

func (r *sqliteReader) User(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id,first_name,email FROM users WHERE id=?`, id)
	var u User
	err := row.Scan(&u.ID, &u.FirstName, &u.Email)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}
