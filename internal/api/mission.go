package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"downshot/pkg/config"
	"downshot/pkg/geo"
	"downshot/pkg/mission"
	"downshot/pkg/store"
)

// MissionControl is the orchestrator surface exposed over HTTP.
type MissionControl interface {
	SetTarget(p geo.Point)
	Status() mission.Status
	StartMission(ctx context.Context) bool
	Reset(ctx context.Context) bool
}

// MissionHandler serves target selection and mission control.
type MissionHandler struct {
	ctl   MissionControl
	state store.StateStore
}

// NewMissionHandler creates a handler; st persists the last target and may be nil.
func NewMissionHandler(ctl MissionControl, st store.StateStore) *MissionHandler {
	return &MissionHandler{ctl: ctl, state: st}
}

// TargetRequest is the body of POST /api/mission/target.
type TargetRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// MissionResponse wraps the status with the outcome of a control request.
type MissionResponse struct {
	mission.Status
	Accepted *bool `json:"accepted,omitempty"`
}

func (h *MissionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MissionResponse{Status: h.ctl.Status()})
}

// HandleSetTarget replaces the target. Range checks happen when the
// mission starts, matching the orchestrator.
func (h *MissionHandler) HandleSetTarget(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}

	p := geo.Point{Lat: *req.Lat, Lon: *req.Lon}
	h.ctl.SetTarget(p)

	if h.state != nil && p.Valid() {
		if err := h.state.SetState(r.Context(), config.KeyLastTarget, p.String()); err != nil {
			slog.Warn("Failed to persist target", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, MissionResponse{Status: h.ctl.Status()})
}

// HandleStart answers 202 when an attempt began and 409 when it was ignored
// (no target, not Idle, or the request ended before the start ran).
func (h *MissionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ok := h.ctl.StartMission(r.Context())
	status := http.StatusAccepted
	if !ok {
		status = http.StatusConflict
	}
	writeJSON(w, status, MissionResponse{Status: h.ctl.Status(), Accepted: &ok})
}

// HandleReset answers 200 when the orchestrator is Idle afterwards and 409
// while an attempt is in progress.
func (h *MissionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ok := h.ctl.Reset(r.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusConflict
	}
	writeJSON(w, status, MissionResponse{Status: h.ctl.Status(), Accepted: &ok})
}
