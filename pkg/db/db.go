package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// Init opens the database and runs migrations.
func Init(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{db}
	// Single connection avoids SQLITE_BUSY on concurrent writes.
	db.SetMaxOpenConns(1)

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

// PruneRuns removes finished mission runs (and their events) that ended
// before now minus olderThan. Runs still in flight are never pruned.
func (d *DB) PruneRuns(olderThan time.Duration) (int64, error) {
	deadline := time.Now().Add(-olderThan).UTC()
	const expired = `SELECT id FROM mission_runs WHERE finished_at IS NOT NULL AND finished_at < ?`

	tx, err := d.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM mission_events WHERE run_id IN ("+expired+")", deadline); err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	res, err := tx.Exec("DELETE FROM mission_runs WHERE id IN ("+expired+")", deadline)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS mission_runs (
			id TEXT PRIMARY KEY,
			target_lat REAL,
			target_lon REAL,
			altitude REAL,
			state TEXT,
			error TEXT,
			started_at DATETIME,
			updated_at DATETIME,
			finished_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mission_runs_started ON mission_runs(started_at);`,
		`CREATE TABLE IF NOT EXISTS mission_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			state TEXT,
			message TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mission_events_run ON mission_events(run_id);`,
		`CREATE TABLE IF NOT EXISTS persistent_state (
			key TEXT PRIMARY KEY,
			value TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("exec error: %w query: %s", err, q)
		}
	}

	return nil
}
