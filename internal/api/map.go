package api

import (
	"log/slog"
	"net/http"

	"downshot/pkg/mapsurface"
)

// MapHandler serves the map surface as GeoJSON.
type MapHandler struct {
	surface *mapsurface.Surface
}

func NewMapHandler(s *mapsurface.Surface) *MapHandler {
	return &MapHandler{surface: s}
}

func (h *MapHandler) HandleMap(w http.ResponseWriter, r *http.Request) {
	data, err := h.surface.FeatureCollection().MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to write map response", "error", err)
	}
}

func (h *MapHandler) HandleResetTrail(w http.ResponseWriter, r *http.Request) {
	h.surface.ResetTrail()
	w.WriteHeader(http.StatusNoContent)
}
