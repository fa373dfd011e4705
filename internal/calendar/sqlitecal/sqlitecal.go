// Package sqlitecal implements a calendar Adapter backed by a local SQLite
// database.
//
// It serves as the local calendar backend and as a durable fixture store in
// integration tests. SQLite's row-level version counter doubles as the
// optimistic-concurrency token: every mutation increments it, and
// conditional operations compare it the way a CalDAV server compares ETags.
package sqlitecal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chronos-cal/chronos/internal/calendar"
)

//go:embed schema.sql
var schemaSQL string

// Store is a sqlite-backed calendar adapter.
type Store struct {
	id       string
	db       *sql.DB
	readOnly bool
}

// Option configures a Store.
type Option func(*Store)

// WithReadOnly opens the calendar in read-only mode: every mutating
// operation fails with calendar.ErrReadOnly.
func WithReadOnly() Option {
	return func(s *Store) { s.readOnly = true }
}

// Open creates or opens a sqlite calendar at path.
//
// The database is configured with WAL mode, NORMAL synchronous, a 5-second
// busy timeout, and foreign-key enforcement. The connection pool is capped
// at one connection because sqlite supports a single writer.
func Open(id, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open calendar db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect calendar db: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{id: id, db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ID implements calendar.Adapter.
func (s *Store) ID() string { return s.id }

// List implements calendar.Adapter. Series masters are always included;
// dated events are filtered to starts within [from, to).
func (s *Store) List(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version, title, start_utc, end_utc, all_day, rrule, recurrence_id
		FROM events
		WHERE (rrule != '' AND recurrence_id IS NULL)
		   OR (start_utc >= ? AND start_utc < ?)
		ORDER BY start_utc, id
	`, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []calendar.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	for i := range out {
		props, err := s.loadProps(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Props = props
	}
	return out, nil
}

// Fetch implements calendar.Adapter.
func (s *Store) Fetch(ctx context.Context, id string) (calendar.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, version, title, start_utc, end_utc, all_day, rrule, recurrence_id
		FROM events WHERE id = ?
	`, id)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return calendar.Event{}, fmt.Errorf("fetch %s: %w", id, calendar.ErrNotFound)
	}
	if err != nil {
		return calendar.Event{}, err
	}

	ev.Props, err = s.loadProps(ctx, id)
	if err != nil {
		return calendar.Event{}, err
	}
	return ev, nil
}

// Update implements calendar.Adapter. The whole patch is applied in one
// transaction guarded by the version counter, so a patch either lands
// completely or not at all.
func (s *Store) Update(ctx context.Context, id, etag string, p calendar.Patch) (calendar.Event, error) {
	if s.readOnly {
		return calendar.Event{}, fmt.Errorf("update %s: %w", id, calendar.ErrReadOnly)
	}
	version, err := parseEtag(etag)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("update %s: %w", id, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("update %s: begin: %w", id, err)
	}
	defer tx.Rollback()

	sets := []string{"version = version + 1"}
	var args []interface{}
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Start != nil {
		sets = append(sets, "start_utc = ?")
		args = append(args, p.Start.UTC().Format(time.RFC3339))
	}
	if p.End != nil {
		sets = append(sets, "end_utc = ?")
		args = append(args, p.End.UTC().Format(time.RFC3339))
	}
	args = append(args, id, version)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE events SET %s
		WHERE id = ? AND version = ?
	`, strings.Join(sets, ", ")), args...)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("update %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return calendar.Event{}, fmt.Errorf("update %s: %w", id, err)
	}
	if n == 0 {
		// Distinguish stale token from missing row.
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, id).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return calendar.Event{}, fmt.Errorf("update %s: %w", id, calendar.ErrNotFound)
			}
			return calendar.Event{}, fmt.Errorf("update %s: %w", id, err)
		}
		return calendar.Event{}, fmt.Errorf("update %s: %w", id, calendar.ErrConflict)
	}

	for k, v := range p.SetProps {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO event_props (event_id, key, value) VALUES (?, ?, ?)
			ON CONFLICT(event_id, key) DO UPDATE SET value = excluded.value
		`, id, k, v); err != nil {
			return calendar.Event{}, fmt.Errorf("update %s: set prop %s: %w", id, k, err)
		}
	}
	for _, k := range p.DelProps {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM event_props WHERE event_id = ? AND key = ?
		`, id, k); err != nil {
			return calendar.Event{}, fmt.Errorf("update %s: del prop %s: %w", id, k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return calendar.Event{}, fmt.Errorf("update %s: commit: %w", id, err)
	}
	return s.Fetch(ctx, id)
}

// Create implements calendar.Adapter.
func (s *Store) Create(ctx context.Context, ev calendar.Event) (calendar.Event, error) {
	if s.readOnly {
		return calendar.Event{}, fmt.Errorf("create: %w", calendar.ErrReadOnly)
	}
	if ev.ID == "" {
		return calendar.Event{}, fmt.Errorf("create: event id is required")
	}

	var rid any
	if ev.RecurrenceID != nil {
		rid = ev.RecurrenceID.UTC().Format(time.RFC3339)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("create %s: begin: %w", ev.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, version, title, start_utc, end_utc, all_day, rrule, recurrence_id)
		VALUES (?, 1, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.Title,
		ev.Start.UTC().Format(time.RFC3339),
		ev.End.UTC().Format(time.RFC3339),
		boolToInt(ev.AllDay), ev.RRule, rid)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return calendar.Event{}, fmt.Errorf("create %s: %w", ev.ID, calendar.ErrConflict)
		}
		return calendar.Event{}, fmt.Errorf("create %s: %w", ev.ID, err)
	}
	for k, v := range ev.Props {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO event_props (event_id, key, value) VALUES (?, ?, ?)
		`, ev.ID, k, v); err != nil {
			return calendar.Event{}, fmt.Errorf("create %s: prop %s: %w", ev.ID, k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return calendar.Event{}, fmt.Errorf("create %s: commit: %w", ev.ID, err)
	}
	return s.Fetch(ctx, ev.ID)
}

// Delete implements calendar.Adapter.
func (s *Store) Delete(ctx context.Context, id, etag string) error {
	if s.readOnly {
		return fmt.Errorf("delete %s: %w", id, calendar.ErrReadOnly)
	}
	version, err := parseEtag(etag)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM events WHERE id = ? AND version = ?
	`, id, version)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("delete %s: %w", id, calendar.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		return fmt.Errorf("delete %s: %w", id, calendar.ErrConflict)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (calendar.Event, error) {
	var (
		ev       calendar.Event
		version  int64
		startStr string
		endStr   string
		allDay   int
		ridStr   sql.NullString
	)
	if err := row.Scan(&ev.ID, &version, &ev.Title, &startStr, &endStr, &allDay, &ev.RRule, &ridStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return calendar.Event{}, err
		}
		return calendar.Event{}, fmt.Errorf("scan event: %w", err)
	}

	var err error
	ev.Start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("scan event %s: start: %w", ev.ID, err)
	}
	ev.End, err = time.Parse(time.RFC3339, endStr)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("scan event %s: end: %w", ev.ID, err)
	}
	if ridStr.Valid {
		rid, err := time.Parse(time.RFC3339, ridStr.String)
		if err != nil {
			return calendar.Event{}, fmt.Errorf("scan event %s: recurrence id: %w", ev.ID, err)
		}
		ev.RecurrenceID = &rid
	}
	ev.AllDay = allDay != 0
	ev.Etag = "v" + strconv.FormatInt(version, 10)
	return ev, nil
}

func (s *Store) loadProps(ctx context.Context, id string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM event_props WHERE event_id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load props %s: %w", id, err)
	}
	defer rows.Close()

	props := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("load props %s: %w", id, err)
		}
		props[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load props %s: %w", id, err)
	}
	return props, nil
}

func parseEtag(etag string) (int64, error) {
	raw, ok := strings.CutPrefix(etag, "v")
	if !ok {
		return 0, fmt.Errorf("malformed etag %q", etag)
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed etag %q", etag)
	}
	return version, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
