// Package telemetry keeps the latest vehicle state reported by the flight controller.
package telemetry

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"downshot/pkg/geo"
)

// ControllerState is one state update as delivered by the flight controller.
type ControllerState struct {
	MotorsOn   bool
	IsFlying   bool
	YawDegrees float64    // Attitude yaw, degrees
	Altitude   float64    // Meters above takeoff point
	Position   *geo.Point // nil when the aircraft has no position fix
}

// VehicleState is the snapshot read by the mission orchestrator.
type VehicleState struct {
	MotorsOn       bool       `json:"motors_on"`
	IsFlying       bool       `json:"is_flying"`
	HeadingRadians float64    `json:"heading_rad"`
	Altitude       float64    `json:"altitude"`
	Position       *geo.Point `json:"position,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// MarkerSink receives aircraft marker updates (the map surface).
type MarkerSink interface {
	UpdateAircraft(p geo.Point, headingRadians float64)
}

// Source delivers controller state updates to a subscriber until unsubscribed.
type Source interface {
	Subscribe(fn func(ControllerState)) (unsubscribe func())
}

// HeadingRadians converts an attitude yaw in degrees to a heading in radians.
func HeadingRadians(yawDegrees float64) float64 {
	return yawDegrees * math.Pi / 180.0
}

// Listener copies every controller update into VehicleState and forwards
// positioned updates to the marker sink. Updates are applied as they arrive;
// ordering and freshness are the source's responsibility.
type Listener struct {
	mu    sync.RWMutex
	state VehicleState
	sink  MarkerSink

	logger  *slog.Logger
	logRate *rate.Limiter
}

// NewListener creates a listener forwarding markers to sink (may be nil).
func NewListener(sink MarkerSink) *Listener {
	return &Listener{
		sink:    sink,
		logger:  slog.With("component", "telemetry"),
		logRate: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// HandleUpdate applies one controller update.
func (l *Listener) HandleUpdate(s ControllerState) {
	heading := HeadingRadians(s.YawDegrees)

	var pos *geo.Point
	if s.Position != nil {
		p := *s.Position
		pos = &p
	}

	l.mu.Lock()
	l.state = VehicleState{
		MotorsOn:       s.MotorsOn,
		IsFlying:       s.IsFlying,
		HeadingRadians: heading,
		Altitude:       s.Altitude,
		Position:       pos,
		UpdatedAt:      time.Now(),
	}
	sink := l.sink
	l.mu.Unlock()

	// Sampled: the controller reports at 10Hz.
	if l.logRate.Allow() {
		l.logger.Debug("Vehicle state", "motors_on", s.MotorsOn, "flying", s.IsFlying, "yaw", s.YawDegrees, "alt", s.Altitude)
	}

	if pos != nil && sink != nil {
		sink.UpdateAircraft(*pos, heading)
	}
}

// Snapshot returns a copy of the current vehicle state.
func (l *Listener) Snapshot() VehicleState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := l.state
	if s.Position != nil {
		p := *s.Position
		s.Position = &p
	}
	return s
}

// Attach subscribes the listener to src and returns the unsubscribe func.
func (l *Listener) Attach(src Source) func() {
	return src.Subscribe(l.HandleUpdate)
}
