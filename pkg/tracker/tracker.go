package tracker

import (
	"sync"
	"sync/atomic"
	"time"
)

// Tracker counts outcomes per vehicle command.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*CommandStats
}

// CommandStats holds metrics for a specific command.
// Counter fields are accessed atomically.
type CommandStats struct {
	Success     int64 `json:"success"`
	Failures    int64 `json:"failures"`
	LastFailure int64 `json:"last_failure,omitempty"` // unix millis
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*CommandStats),
	}
}

// getStats returns the stats object for a command, creating it if needed.
func (t *Tracker) getStats(command string) *CommandStats {
	t.mu.RLock()
	s, ok := t.stats[command]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[command]; ok {
		return s
	}
	s = &CommandStats{}
	t.stats[command] = s
	return s
}

// TrackSuccess increments the success counter.
func (t *Tracker) TrackSuccess(command string) {
	atomic.AddInt64(&t.getStats(command).Success, 1)
}

func (t *Tracker) TrackFailure(command string) {
	s := t.getStats(command)
	atomic.AddInt64(&s.Failures, 1)
	atomic.StoreInt64(&s.LastFailure, time.Now().UnixMilli())
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]CommandStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]CommandStats, len(t.stats))
	for k, v := range t.stats {
		result[k] = CommandStats{
			Success:     atomic.LoadInt64(&v.Success),
			Failures:    atomic.LoadInt64(&v.Failures),
			LastFailure: atomic.LoadInt64(&v.LastFailure),
		}
	}
	return result
}

// Reset clears every counter.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = make(map[string]*CommandStats)
}
