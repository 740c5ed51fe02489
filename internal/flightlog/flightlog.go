// Package flightlog records wind estimates and monitor events to SQLite.
package flightlog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sweeney/flight-monitor/internal/logic"
)

//go:embed schema.sql
var schemaSQL string

// MaxReadRows caps the rows a single read returns.
const MaxReadRows = 1000

// Event kinds.
const (
	KindWindFailsafe = "WIND_FAILSAFE"
	KindDisarm       = "DISARM_SEQ"
	KindFlight       = "FLIGHT_SEQ"
	KindParamSet     = "PARAM_SET"
)

// WindRecord is one wind estimate log entry.
type WindRecord struct {
	ID        int64
	Timestamp time.Time
	Speed     float64
	Direction float64
	HighWind  bool
}

// EventRecord is one monitor event log entry.
type EventRecord struct {
	ID        int64
	Timestamp time.Time
	Kind      string
	Detail    sql.NullString
}

// Recorder is the write side of the flight log used by the run loop.
type Recorder interface {
	RecordWind(ctx context.Context, t time.Time, w logic.WindState) error
	RecordEvent(ctx context.Context, t time.Time, kind, detail string) error
	PruneWind(ctx context.Context, keep int) (int64, error)
}

// Store is a SQLite-backed flight log. Writes and reads use separate
// connections so readers never hold the writer's connection.
type Store struct {
	path string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a store for the database at path. The database is opened
// and the schema applied on first use.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("flightlog: path is required")
	}
	return &Store{path: path}, nil
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", "file:"+s.path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
		if err != nil {
			s.writeDBErr = err
			return
		}
		// The run loop is the only writer.
		db.SetMaxOpenConns(1)

		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		s.writeDB = db
	})
	return s.writeDB, s.writeDBErr
}

// getReadDB opens a read-only handle. The write handle is opened first so
// the file and schema exist.
func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		if _, err := s.getWriteDB(); err != nil {
			s.readDBErr = err
			return
		}
		db, err := sql.Open("sqlite3", "file:"+s.path+"?mode=ro&_busy_timeout=5000")
		if err != nil {
			s.readDBErr = err
			return
		}
		s.readDB = db
	})
	return s.readDB, s.readDBErr
}

const insertWindSQL = `
INSERT INTO wind_estimates (timestamp, speed, direction, high_wind)
VALUES (?, ?, ?, ?)`

// RecordWind appends a wind estimate record.
func (s *Store) RecordWind(ctx context.Context, t time.Time, w logic.WindState) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}
	if _, err := db.ExecContext(ctx, insertWindSQL, t.UTC(), w.Speed, w.Direction, w.HighWind); err != nil {
		return fmt.Errorf("inserting wind estimate: %w", err)
	}
	return nil
}

const insertEventSQL = `
INSERT INTO events (timestamp, kind, detail)
VALUES (?, ?, ?)`

// RecordEvent appends an event record. An empty detail is stored as NULL.
func (s *Store) RecordEvent(ctx context.Context, t time.Time, kind, detail string) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}
	d := sql.NullString{String: detail, Valid: detail != ""}
	if _, err := db.ExecContext(ctx, insertEventSQL, t.UTC(), kind, d); err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

const pruneWindSQL = `
DELETE FROM wind_estimates
WHERE id <= (SELECT MAX(id) FROM wind_estimates) - ?`

// PruneWind deletes all but the newest keep wind records and returns the
// number deleted.
func (s *Store) PruneWind(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("pruning wind estimates: keep %d is negative", keep)
	}
	db, err := s.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}
	res, err := db.ExecContext(ctx, pruneWindSQL, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning wind estimates: %w", err)
	}
	return res.RowsAffected()
}

const selectWindSQL = `
SELECT id, timestamp, speed, direction, high_wind
FROM wind_estimates
ORDER BY id DESC
LIMIT ?`

// RecentWind returns up to limit wind records, newest first. limit is
// capped at MaxReadRows.
func (s *Store) RecentWind(ctx context.Context, limit int) (records []WindRecord, err error) {
	if limit > MaxReadRows {
		limit = MaxReadRows
	}
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectWindSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("querying wind estimates: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	for rows.Next() {
		var r WindRecord
		if err = rows.Scan(&r.ID, &r.Timestamp, &r.Speed, &r.Direction, &r.HighWind); err != nil {
			return nil, fmt.Errorf("scanning wind estimate: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

const selectEventsSQL = `
SELECT id, timestamp, kind, detail FROM (
    SELECT id, timestamp, kind, detail
    FROM events
    WHERE kind = ?
    ORDER BY id DESC
    LIMIT ?
)
ORDER BY id`

// Events returns the newest MaxReadRows events of the given kind, oldest first.
func (s *Store) Events(ctx context.Context, kind string) (events []EventRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectEventsSQL, kind, MaxReadRows)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	for rows.Next() {
		var e EventRecord
		if err = rows.Scan(&e.ID, &e.Timestamp, &e.Kind, &e.Detail); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close releases the database connection. Safe to call multiple times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.readDB != nil {
			errs = append(errs, s.readDB.Close())
			s.readDB = nil
		}
		if s.writeDB != nil {
			errs = append(errs, s.writeDB.Close())
			s.writeDB = nil
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
