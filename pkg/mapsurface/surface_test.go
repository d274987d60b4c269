package mapsurface

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"downshot/pkg/geo"
)

func kinds(fc *geojson.FeatureCollection) []string {
	var out []string
	for _, f := range fc.Features {
		out = append(out, f.Properties.MustString("kind"))
	}
	return out
}

func TestSurface_Empty(t *testing.T) {
	s := New(10)
	assert.Nil(t, s.Target())
	_, ok := s.Aircraft()
	assert.False(t, ok)
	assert.Empty(t, s.FeatureCollection().Features)
}

func TestSurface_SingleTarget(t *testing.T) {
	s := New(10)
	s.SetTarget(geo.Point{Lat: 1, Lon: 2})
	s.SetTarget(geo.Point{Lat: 3, Lon: 4})

	require.NotNil(t, s.Target())
	assert.Equal(t, geo.Point{Lat: 3, Lon: 4}, *s.Target())

	fc := s.FeatureCollection()
	require.Len(t, fc.Features, 1)
	assert.Equal(t, orb.Point{4, 3}, fc.Features[0].Geometry)

	s.ClearTarget()
	assert.Nil(t, s.Target())
}

func TestSurface_AircraftMarker(t *testing.T) {
	s := New(10)
	start := geo.Point{Lat: 47, Lon: 8}
	s.UpdateAircraft(start, math.Pi)
	s.UpdateAircraft(geo.DestinationPoint(start, 50, 0), math.Pi/2)

	m, ok := s.Aircraft()
	require.True(t, ok)
	assert.InDelta(t, math.Pi/2, m.HeadingRadians, 1e-9)

	s.SetTarget(geo.DestinationPoint(start, 200, 0))
	fc := s.FeatureCollection()
	assert.Equal(t, []string{KindTarget, KindAircraft, KindTrail, KindRoute}, kinds(fc))

	aircraft := fc.Features[1]
	assert.InDelta(t, 90.0, aircraft.Properties.MustFloat64("heading_deg"), 1e-9)

	route := fc.Features[3]
	assert.InDelta(t, 150.0, route.Properties.MustFloat64("distance_m"), 0.5)
}

func TestSurface_GeoJSONRoundTrip(t *testing.T) {
	s := New(10)
	s.SetTarget(geo.Point{Lat: 52.52, Lon: 13.405})

	data, err := json.Marshal(s.FeatureCollection())
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, KindTarget, fc.Features[0].Properties.MustString("kind"))
}

func TestSurface_ResetTrail(t *testing.T) {
	s := New(10)
	start := geo.Point{Lat: 47, Lon: 8}
	s.UpdateAircraft(start, 0)
	s.UpdateAircraft(geo.DestinationPoint(start, 10, 0), 0)
	s.ResetTrail()

	assert.Equal(t, []string{KindAircraft}, kinds(s.FeatureCollection()))
}
