package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"downshot/pkg/db"
)

func TestDB(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "nested", "db_test.db")

	d, err := db.Init(path)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if d == nil {
		t.Fatal("Init() returned nil DB")
	}
	d.Close()

	// Migrations are idempotent.
	d, err = db.Init(path)
	if err != nil {
		t.Fatalf("second Init() failed: %v", err)
	}
	d.Close()
}

func TestPruneRuns(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "prune.db"))
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer d.Close()

	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	insert := `INSERT INTO mission_runs (id, state, started_at, updated_at, finished_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := d.Exec(insert, "old", "completed", old, old, old); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Exec(insert, "recent", "failed", now, now, now); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Exec(insert, "active", "executing", old, old, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Exec(`INSERT INTO mission_events (run_id, state, message) VALUES ('old', 'completed', 'done')`); err != nil {
		t.Fatal(err)
	}

	n, err := d.PruneRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PruneRuns() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d runs, want 1", n)
	}

	var events int
	if err := d.QueryRow(`SELECT count(*) FROM mission_events`).Scan(&events); err != nil {
		t.Fatal(err)
	}
	if events != 0 {
		t.Errorf("events of pruned run should be removed, got %d", events)
	}
}
