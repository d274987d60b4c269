package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"downshot/pkg/db"
	"downshot/pkg/model"
)

// ErrNotFound is returned when a mission run does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the repository interface.
// It composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	MissionStore
	StateStore

	// Ping checks that the database answers.
	Ping(ctx context.Context) error
	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Mission runs ---

// SaveRun inserts the run or updates its mutable columns.
func (s *SQLiteStore) SaveRun(ctx context.Context, r *model.MissionRun) error {
	query := `
		INSERT INTO mission_runs (id, target_lat, target_lon, altitude, state, error, started_at, updated_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			error = excluded.error,
			updated_at = excluded.updated_at,
			finished_at = excluded.finished_at
	`
	var finished sql.NullTime
	if r.FinishedAt != nil {
		finished = sql.NullTime{Time: r.FinishedAt.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.TargetLat, r.TargetLon, r.Altitude, r.State, r.Error,
		r.StartedAt.UTC(), r.UpdatedAt.UTC(), finished)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", r.ID, err)
	}
	return nil
}

const runColumns = `id, target_lat, target_lon, altitude, state, error, started_at, updated_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.MissionRun, error) {
	var r model.MissionRun
	var errText sql.NullString
	var finished sql.NullTime
	if err := row.Scan(&r.ID, &r.TargetLat, &r.TargetLon, &r.Altitude, &r.State, &errText,
		&r.StartedAt, &r.UpdatedAt, &finished); err != nil {
		return nil, err
	}
	r.Error = errText.String
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.MissionRun, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM mission_runs WHERE id = ?", id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A non-positive limit
// returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*model.MissionRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM mission_runs ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*model.MissionRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- Mission events ---

// AppendEvent stores ev and fills in its ID and, when unset, CreatedAt.
func (s *SQLiteStore) AppendEvent(ctx context.Context, ev *model.MissionEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO mission_events (run_id, state, message, created_at) VALUES (?, ?, ?, ?)",
		ev.RunID, ev.State, ev.Message, ev.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append event for run %s: %w", ev.RunID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		ev.ID = id
	}
	return nil
}

// ListEvents returns a run's events in insertion order.
func (s *SQLiteStore) ListEvents(ctx context.Context, runID string) ([]*model.MissionEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, state, message, created_at FROM mission_events WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.MissionEvent
	for rows.Next() {
		var ev model.MissionEvent
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.State, &ev.Message, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
