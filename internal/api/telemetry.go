package api

import (
	"log/slog"
	"net/http"

	"downshot/pkg/geo"
	"downshot/pkg/telemetry"
	"downshot/pkg/vehicle"
)

// StateSource provides the latest vehicle state.
type StateSource interface {
	Snapshot() telemetry.VehicleState
}

// ProductSource reports the connected product, if any.
type ProductSource interface {
	Product() (vehicle.Product, bool)
}

// TelemetryResponse is the API response structure.
type TelemetryResponse struct {
	telemetry.VehicleState
	HeadingDegrees float64 `json:"heading_deg"`
	Connected      bool    `json:"connected"`
	Model          string  `json:"model,omitempty"`
}

type TelemetryHandler struct {
	state   StateSource
	product ProductSource
}

// NewTelemetryHandler creates a handler; product may be nil.
func NewTelemetryHandler(state StateSource, product ProductSource) *TelemetryHandler {
	return &TelemetryHandler{state: state, product: product}
}

func (h *TelemetryHandler) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	s := h.state.Snapshot()
	resp := TelemetryResponse{
		VehicleState:   s,
		HeadingDegrees: geo.NormalizeHeading(geo.RadToDeg(s.HeadingRadians)),
	}
	if h.product != nil {
		if p, ok := h.product.Product(); ok {
			resp.Connected = true
			resp.Model = p.Model
		}
	}

	writeJSON(w, http.StatusOK, resp)
	slog.Debug("Telemetry served", "connected", resp.Connected)
}
