package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"downshot/pkg/db"
	"downshot/pkg/store"
)

const lastPruneStateKey = "maintenance_last_prune"

// pruneInterval bounds how often history is pruned across restarts.
const pruneInterval = 24 * time.Hour

// Run prunes finished mission history older than retention. A zero
// retention keeps everything. It blocks until completion.
func Run(ctx context.Context, s store.StateStore, d *db.DB, retention time.Duration) error {
	if retention <= 0 {
		return nil
	}

	if last, ok := s.GetState(ctx, lastPruneStateKey); ok {
		if t, err := time.Parse(time.RFC3339, last); err == nil && time.Since(t) < pruneInterval {
			slog.Debug("History pruning skipped", "last", t)
			return nil
		}
	}

	slog.Info("Starting database maintenance...")
	n, err := d.PruneRuns(retention)
	if err != nil {
		return fmt.Errorf("history pruning failed: %w", err)
	}
	slog.Info("History pruning completed", "runs", n, "retention", retention)

	if err := s.SetState(ctx, lastPruneStateKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("Failed to record maintenance time", "error", err)
	}
	return nil
}
