package api

import (
	"errors"
	"net/http"
	"strconv"

	"downshot/pkg/model"
	"downshot/pkg/store"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// HistoryHandler serves persisted mission runs.
type HistoryHandler struct {
	store store.MissionStore
}

func NewHistoryHandler(st store.MissionStore) *HistoryHandler {
	return &HistoryHandler{store: st}
}

// RunDetail is a run with its event timeline.
type RunDetail struct {
	Run    *model.MissionRun     `json:"run"`
	Events []*model.MissionEvent `json:"events"`
}

// HandleList returns the most recent runs; ?limit=N caps the count.
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*model.MissionRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *HistoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := h.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "mission not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	events, err := h.store.ListEvents(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []*model.MissionEvent{}
	}
	writeJSON(w, http.StatusOK, RunDetail{Run: run, Events: events})
}
