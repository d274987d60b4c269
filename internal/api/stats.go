package api

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"downshot/pkg/tracker"
)

type StatsHandler struct {
	tracker *tracker.Tracker
	started time.Time

	mu     sync.Mutex
	maxMem uint64
}

func NewStatsHandler(t *tracker.Tracker) *StatsHandler {
	return &StatsHandler{
		tracker: t,
		started: time.Now(),
	}
}

type CommandStatsDTO struct {
	Success     int64  `json:"success"`
	Failures    int64  `json:"failures"`
	SuccessRate int64  `json:"success_rate"`
	LastFailure string `json:"last_failure,omitempty"`
}

type Diagnostics struct {
	MemoryMB    uint64  `json:"memory_mb"`
	MemoryMaxMB uint64  `json:"memory_max_mb"`
	Goroutines  int     `json:"goroutines"`
	UptimeSec   float64 `json:"uptime_sec"`
}

type StatsResponse struct {
	Diagnostics Diagnostics                `json:"diagnostics"`
	Commands    map[string]CommandStatsDTO `json:"commands"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	h.mu.Lock()
	diagnostics := h.gatherDiagnostics()
	h.mu.Unlock()

	resp := StatsResponse{
		Diagnostics: diagnostics,
		Commands:    make(map[string]CommandStatsDTO, len(snapshot)),
	}

	for command, stats := range snapshot {
		total := stats.Success + stats.Failures
		rate := int64(0)
		if total > 0 {
			rate = (stats.Success * 100) / total
		}
		dto := CommandStatsDTO{
			Success:     stats.Success,
			Failures:    stats.Failures,
			SuccessRate: rate,
		}
		if stats.LastFailure > 0 {
			dto.LastFailure = time.UnixMilli(stats.LastFailure).UTC().Format(time.RFC3339)
		}
		resp.Commands[command] = dto
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *StatsHandler) gatherDiagnostics() Diagnostics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.Sys > h.maxMem {
		h.maxMem = m.Sys
	}
	return Diagnostics{
		MemoryMB:    bToMb(m.Sys),
		MemoryMaxMB: bToMb(h.maxMem),
		Goroutines:  runtime.NumGoroutine(),
		UptimeSec:   time.Since(h.started).Seconds(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
