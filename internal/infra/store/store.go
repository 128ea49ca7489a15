// Package store persists the playback resume marker in a local SQLite file.
package store

import (
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS playback_marker (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	was_playing BOOLEAN NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS playback_log (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	event TEXT NOT NULL,
	at    TIMESTAMP NOT NULL
);
`

// Store is the SQLite-backed playback marker store.
type Store struct {
	db *sqlx.DB
}

// Open opens (and if needed creates) the store at path.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open state db")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &Store{db: db}, nil
}

// MarkPlaying records that playback was confirmed at the given time.
func (s *Store) MarkPlaying(at time.Time) error {
	return s.mark(true, "started", at)
}

// MarkStopped records that the user explicitly stopped playback.
func (s *Store) MarkStopped(at time.Time) error {
	return s.mark(false, "stopped", at)
}

func (s *Store) mark(playing bool, event string, at time.Time) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`INSERT INTO playback_marker (id, was_playing, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET was_playing = excluded.was_playing, updated_at = excluded.updated_at`,
		playing, at.UTC())
	if err != nil {
		return errors.Wrap(err, "failed to update marker")
	}

	if _, err := tx.Exec(`INSERT INTO playback_log (event, at) VALUES (?, ?)`, event, at.UTC()); err != nil {
		return errors.Wrap(err, "failed to append log")
	}

	return errors.Wrap(tx.Commit(), "failed to commit marker")
}

// LastPlayingAt returns the marker timestamp and whether playback was active
// when it was written. A store without a marker reports not playing.
func (s *Store) LastPlayingAt() (time.Time, bool, error) {
	var row struct {
		WasPlaying bool      `db:"was_playing"`
		UpdatedAt  time.Time `db:"updated_at"`
	}
	err := s.db.Get(&row, `SELECT was_playing, updated_at FROM playback_marker WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "failed to read marker")
	}
	if !row.WasPlaying {
		return time.Time{}, false, nil
	}
	return row.UpdatedAt, true, nil
}

// History returns the most recent start/stop transitions, newest first.
func (s *Store) History(limit int) ([]Transition, error) {
	var out []Transition
	err := s.db.Select(&out, `SELECT event, at FROM playback_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read history")
	}
	return out, nil
}

// Transition is a recorded playback start or stop.
type Transition struct {
	Event string    `db:"event" json:"event"`
	At    time.Time `db:"at" json:"at"`
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
