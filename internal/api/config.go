package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"downshot/pkg/config"
	"downshot/pkg/mission"
	"downshot/pkg/store"
)

// ConfigHandler handles configuration API requests. Updates are stored as
// state overrides on top of the YAML config.
type ConfigHandler struct {
	store   store.StateStore
	cfgProv config.Provider
	appCfg  *config.Config
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(st store.StateStore, cfg config.Provider) *ConfigHandler {
	return &ConfigHandler{
		store:   st,
		cfgProv: cfg,
		appCfg:  cfg.AppConfig(),
	}
}

// ConfigResponse represents the config API response.
type ConfigResponse struct {
	MissionAltitude float64 `json:"mission_altitude"`
	SettleDelay     string  `json:"settle_delay"`
	MissionTimeout  string  `json:"mission_timeout"`
	ResetTimeline   bool    `json:"reset_timeline"`
	VehicleProvider string  `json:"vehicle_provider"`
	VehicleModel    string  `json:"vehicle_model"`
	AppKeySet       bool    `json:"app_key_set"`
	SimStartLat     float64 `json:"sim_start_lat"`
	SimStartLon     float64 `json:"sim_start_lon"`
	SimStartHeading float64 `json:"sim_start_heading"`
}

// ConfigRequest represents the config API request for updates.
// Pointers distinguish zero values from missing fields.
type ConfigRequest struct {
	MissionAltitude *float64 `json:"mission_altitude,omitempty"`
	SettleDelay     string   `json:"settle_delay,omitempty"`
	MissionTimeout  string   `json:"mission_timeout,omitempty"`
	ResetTimeline   *bool    `json:"reset_timeline,omitempty"`
	SimStartLat     *float64 `json:"sim_start_lat,omitempty"`
	SimStartLon     *float64 `json:"sim_start_lon,omitempty"`
	SimStartHeading *float64 `json:"sim_start_heading,omitempty"`
}

// HandleConfig is a unified handler for all config-related methods, facilitating CORS/OPTIONS.
func (h *ConfigHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		h.HandleGetConfig(w, r)
	case http.MethodPut, http.MethodPost:
		h.HandleSetConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGetConfig returns the current configuration.
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	resp := h.getConfigResponse(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode config response", "error", err)
	}
}

func (h *ConfigHandler) getConfigResponse(ctx context.Context) ConfigResponse {
	return ConfigResponse{
		MissionAltitude: h.cfgProv.MissionAltitude(ctx),
		SettleDelay:     h.cfgProv.SettleDelay(ctx).String(),
		MissionTimeout:  h.cfgProv.MissionTimeout(ctx).String(),
		ResetTimeline:   h.cfgProv.ResetTimeline(ctx),
		VehicleProvider: h.cfgProv.VehicleProvider(ctx),
		VehicleModel:    h.appCfg.Vehicle.Model,
		AppKeySet:       h.appCfg.Vehicle.AppKey != "",
		SimStartLat:     h.cfgProv.SimStartLat(ctx),
		SimStartLon:     h.cfgProv.SimStartLon(ctx),
		SimStartHeading: h.cfgProv.SimStartHeading(ctx),
	}
}

// HandleSetConfig validates every field first and only then stores the
// overrides, so a rejected request changes nothing.
func (h *ConfigHandler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.Body.Close() }()

	var req ConfigRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	updates, err := buildUpdates(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	for key, val := range updates {
		if err := h.store.SetState(ctx, key, val); err != nil {
			slog.Error("Failed to save state", "key", key, "error", err)
			http.Error(w, "Failed to save config", http.StatusInternalServerError)
			return
		}
		slog.Debug("Config updated", key, val)
	}

	h.HandleGetConfig(w, r)
}

func buildUpdates(req *ConfigRequest) (map[string]string, error) {
	updates := make(map[string]string)

	if req.MissionAltitude != nil {
		alt := *req.MissionAltitude
		if alt < mission.MinAltitude || alt > mission.MaxAltitude {
			return nil, fmt.Errorf("mission_altitude must be within [%g, %g]", mission.MinAltitude, mission.MaxAltitude)
		}
		updates[config.KeyMissionAltitude] = formatFloat(alt)
	}
	if req.SettleDelay != "" {
		if _, err := parseNonNegative(req.SettleDelay); err != nil {
			return nil, fmt.Errorf("settle_delay: %w", err)
		}
		updates[config.KeySettleDelay] = req.SettleDelay
	}
	if req.MissionTimeout != "" {
		if _, err := parseNonNegative(req.MissionTimeout); err != nil {
			return nil, fmt.Errorf("mission_timeout: %w", err)
		}
		updates[config.KeyMissionTimeout] = req.MissionTimeout
	}
	if req.ResetTimeline != nil {
		updates[config.KeyResetTimeline] = strconv.FormatBool(*req.ResetTimeline)
	}
	if req.SimStartLat != nil {
		if *req.SimStartLat < -90 || *req.SimStartLat > 90 {
			return nil, fmt.Errorf("sim_start_lat must be within [-90, 90]")
		}
		updates[config.KeySimLat] = formatFloat(*req.SimStartLat)
	}
	if req.SimStartLon != nil {
		if *req.SimStartLon < -180 || *req.SimStartLon > 180 {
			return nil, fmt.Errorf("sim_start_lon must be within [-180, 180]")
		}
		updates[config.KeySimLon] = formatFloat(*req.SimStartLon)
	}
	if req.SimStartHeading != nil {
		updates[config.KeySimHeading] = formatFloat(*req.SimStartHeading)
	}
	if err := checkOverridable(updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// checkOverridable rejects keys the config API must not write.
func checkOverridable(updates map[string]string) error {
	for key := range updates {
		if !config.OverridableKeys[key] {
			return fmt.Errorf("%s is not overridable", key)
		}
	}
	return nil
}

func parseNonNegative(s string) (time.Duration, error) {
	d, err := config.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
