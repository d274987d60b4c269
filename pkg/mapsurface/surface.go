// Package mapsurface holds what the operator map shows: the selected target
// annotation, the heading-oriented aircraft marker and its recent trail.
package mapsurface

import (
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"downshot/pkg/geo"
)

// Feature kinds in the "kind" property of rendered features.
const (
	KindTarget   = "target"
	KindAircraft = "aircraft"
	KindTrail    = "trail"
	KindRoute    = "route"
)

const trailSpacing = 2.0 // Meters

// Marker is the aircraft annotation.
type Marker struct {
	Position       geo.Point `json:"position"`
	HeadingRadians float64   `json:"heading_rad"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Surface is the map annotation state. It satisfies telemetry.MarkerSink
// and mission.TargetSink.
type Surface struct {
	mu       sync.RWMutex
	target   *geo.Point
	aircraft *Marker
	trail    *geo.Trail
	logger   *slog.Logger
}

// New creates an empty surface keeping up to trailSize aircraft positions.
func New(trailSize int) *Surface {
	return &Surface{
		trail:  geo.NewTrail(trailSize, trailSpacing),
		logger: slog.With("component", "map"),
	}
}

// SetTarget replaces the target annotation. Only one target exists at a time.
func (s *Surface) SetTarget(p geo.Point) {
	s.mu.Lock()
	t := p
	s.target = &t
	s.mu.Unlock()
	s.logger.Debug("Target annotation", "target", p.String())
}

// ClearTarget removes the target annotation.
func (s *Surface) ClearTarget() {
	s.mu.Lock()
	s.target = nil
	s.mu.Unlock()
}

// UpdateAircraft moves the aircraft marker.
func (s *Surface) UpdateAircraft(p geo.Point, headingRadians float64) {
	s.mu.Lock()
	s.aircraft = &Marker{Position: p, HeadingRadians: headingRadians, UpdatedAt: time.Now()}
	s.mu.Unlock()
	s.trail.Push(p)
}

// Target returns the target annotation, or nil.
func (s *Surface) Target() *geo.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.target == nil {
		return nil
	}
	t := *s.target
	return &t
}

// Aircraft returns the aircraft marker if one has been placed.
func (s *Surface) Aircraft() (Marker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.aircraft == nil {
		return Marker{}, false
	}
	return *s.aircraft, true
}

// ResetTrail forgets the aircraft's past positions.
func (s *Surface) ResetTrail() {
	s.trail.Reset()
}

// FeatureCollection renders the surface as GeoJSON.
func (s *Surface) FeatureCollection() *geojson.FeatureCollection {
	target := s.Target()
	marker, hasMarker := s.Aircraft()

	fc := geojson.NewFeatureCollection()

	if target != nil {
		f := geojson.NewFeature(target.Orb())
		f.Properties["kind"] = KindTarget
		fc.Append(f)
	}

	if hasMarker {
		f := geojson.NewFeature(marker.Position.Orb())
		f.Properties["kind"] = KindAircraft
		f.Properties["heading_rad"] = marker.HeadingRadians
		f.Properties["heading_deg"] = geo.NormalizeHeading(geo.RadToDeg(marker.HeadingRadians))
		f.Properties["updated_at"] = marker.UpdatedAt.UTC().Format(time.RFC3339)
		fc.Append(f)
	}

	if ls := s.trail.LineString(); len(ls) >= 2 {
		f := geojson.NewFeature(ls)
		f.Properties["kind"] = KindTrail
		fc.Append(f)
	}

	if target != nil && hasMarker {
		f := geojson.NewFeature(orb.LineString{marker.Position.Orb(), target.Orb()})
		f.Properties["kind"] = KindRoute
		f.Properties["distance_m"] = geo.Distance(marker.Position, *target)
		f.Properties["bearing_deg"] = geo.Bearing(marker.Position, *target)
		fc.Append(f)
	}

	return fc
}
