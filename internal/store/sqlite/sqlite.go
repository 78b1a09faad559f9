// Package sqlite implements store.EventStore on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite" // SQLite driver

	"vnsched/internal/model"
	"vnsched/internal/store"
)

// timeLayout is how times are stored. It is the format sqlite's datetime()
// produces, so stored values compare correctly with computed ones.
const timeLayout = "2006-01-02 15:04:05"

// Columns are TEXT rather than DATETIME so the driver hands back strings.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	uid              TEXT NOT NULL UNIQUE,
	title            TEXT NOT NULL,
	start_time       TEXT NOT NULL,
	end_time         TEXT,
	location         TEXT NOT NULL DEFAULT '',
	reminder_minutes INTEGER NOT NULL DEFAULT 0,
	reminded         INTEGER NOT NULL DEFAULT 0,
	source           TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_time);
CREATE INDEX IF NOT EXISTS idx_events_source ON events(source);
`

const columns = `id, uid, title, start_time, end_time, location, reminder_minutes, reminded, source, created_at`

// Store implements store.EventStore.
type Store struct {
	db *sql.DB
}

var _ store.EventStore = (*Store)(nil)

// Open opens (and if needed creates) the database at dsn. ":memory:" gives a
// private in-memory database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection serialises access and,
	// for ":memory:", keeps every query on the same database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, ev *model.Event) error {
	if err := store.Validate(ev); err != nil {
		return err
	}
	return insert(ctx, s.db, ev)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, ev *model.Event) error {
	if ev.UID == "" {
		ev.UID = NewUID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO events (uid, title, start_time, end_time, location, reminder_minutes, reminded, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.UID, ev.Title, formatTime(ev.Start), formatOptional(ev.End), ev.Location,
		ev.ReminderMinutes, ev.Reminded, ev.Source, formatTime(ev.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read event id: %w", err)
	}
	ev.ID = id
	return nil
}

func (s *Store) Update(ctx context.Context, ev *model.Event) error {
	if err := store.Validate(ev); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET title = ?, start_time = ?, end_time = ?, location = ?, reminder_minutes = ?, reminded = 0
		WHERE id = ?`,
		ev.Title, formatTime(ev.Start), formatOptional(ev.End), ev.Location, ev.ReminderMinutes, ev.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event %d: %w", ev.ID, err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	ev.Reminded = false
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event %d: %w", id, err)
	}
	return expectOne(res)
}

func (s *Store) Get(ctx context.Context, id int64) (*model.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *Store) List(ctx context.Context) ([]model.Event, error) {
	return s.query(ctx, `SELECT `+columns+` FROM events ORDER BY start_time, id`)
}

func (s *Store) ListRange(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	return s.query(ctx, `
		SELECT `+columns+` FROM events
		WHERE start_time >= ? AND start_time < ?
		ORDER BY start_time, id`,
		formatTime(from), formatTime(to))
}

func (s *Store) DueForReminder(ctx context.Context, now time.Time) ([]model.Event, error) {
	n := formatTime(now)
	return s.query(ctx, `
		SELECT `+columns+` FROM events
		WHERE reminded = 0
		  AND reminder_minutes > 0
		  AND start_time > ?
		  AND ? >= datetime(start_time, '-' || reminder_minutes || ' minutes')
		ORDER BY start_time, id`,
		n, n)
}

func (s *Store) MarkReminded(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE events SET reminded = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark event %d reminded: %w", id, err)
	}
	return expectOne(res)
}

func (s *Store) ReplaceSource(ctx context.Context, source string, events []model.Event) error {
	for i := range events {
		if err := store.Validate(&events[i]); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// Reminded flags survive a refresh for occurrences that still exist.
	reminded := map[string]bool{}
	rows, err := tx.QueryContext(ctx, `SELECT uid FROM events WHERE source = ? AND reminded = 1`, source)
	if err != nil {
		return fmt.Errorf("failed to read reminded events: %w", err)
	}
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			rows.Close()
			return err
		}
		reminded[uid] = true
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE source = ?`, source); err != nil {
		return fmt.Errorf("failed to clear source %s: %w", source, err)
	}
	for i := range events {
		ev := &events[i]
		ev.Source = source
		ev.Reminded = reminded[ev.UID]
		if err := insert(ctx, tx, ev); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (model.Event, error) {
	var (
		ev             model.Event
		start, created string
		end            sql.NullString
		reminded       int
	)
	if err := row.Scan(&ev.ID, &ev.UID, &ev.Title, &start, &end, &ev.Location,
		&ev.ReminderMinutes, &reminded, &ev.Source, &created); err != nil {
		return model.Event{}, err
	}

	var err error
	if ev.Start, err = parseTime(start); err != nil {
		return model.Event{}, fmt.Errorf("event %d start_time: %w", ev.ID, err)
	}
	if end.Valid && end.String != "" {
		t, err := parseTime(end.String)
		if err != nil {
			return model.Event{}, fmt.Errorf("event %d end_time: %w", ev.ID, err)
		}
		ev.End = &t
	}
	ev.CreatedAt, _ = parseTime(created)
	ev.Reminded = reminded != 0
	return ev, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// NewUID returns a globally unique, time-ordered event UID usable as an
// iCalendar UID.
func NewUID() string {
	return ulid.Make().String() + "@vnsched"
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func formatOptional(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(timeLayout, s, time.Local)
}
