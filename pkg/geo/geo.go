// Package geo provides coordinate types and spherical-earth helpers.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// EarthRadius is the mean earth radius in meters.
const EarthRadius = 6371000

// Point represents a geographic coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String renders the point with six decimals (~0.1m).
func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// Valid reports whether the point is a finite coordinate inside the WGS84 range.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Orb converts the point to an orb.Point (lon, lat order).
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromOrb converts an orb.Point (lon, lat order) to a Point.
func FromOrb(o orb.Point) Point {
	return Point{Lat: o.Lat(), Lon: o.Lon()}
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// Distance calculates the Haversine distance between two points in meters.
func Distance(p1, p2 Point) float64 {
	dLat := DegToRad(p2.Lat - p1.Lat)
	dLon := DegToRad(p2.Lon - p1.Lon)
	lat1 := DegToRad(p1.Lat)
	lat2 := DegToRad(p2.Lat)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// DestinationPoint calculates the point reached from start after distMeters along bearing (degrees).
func DestinationPoint(start Point, distMeters, bearing float64) Point {
	lat1 := DegToRad(start.Lat)
	lon1 := DegToRad(start.Lon)
	brng := DegToRad(bearing)
	d := distMeters / EarthRadius

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(math.Sin(brng)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))

	return Point{
		Lat: RadToDeg(lat2),
		Lon: NormalizeLon(RadToDeg(lon2)),
	}
}

// Bearing calculates the initial bearing (forward azimuth) from p1 to p2 in degrees [0, 360).
func Bearing(p1, p2 Point) float64 {
	lat1 := DegToRad(p1.Lat)
	lat2 := DegToRad(p2.Lat)
	dLon := DegToRad(p2.Lon - p1.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return math.Mod(RadToDeg(math.Atan2(y, x))+360.0, 360.0)
}

// NormalizeAngle normalizes an angle difference to the range [-180, 180].
func NormalizeAngle(angleDeg float64) float64 {
	for angleDeg > 180 {
		angleDeg -= 360
	}
	for angleDeg < -180 {
		angleDeg += 360
	}
	return angleDeg
}

// NormalizeLon wraps a longitude into [-180, 180].
func NormalizeLon(lon float64) float64 {
	return NormalizeAngle(lon)
}

// NormalizeHeading wraps a heading into [0, 360).
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// ParsePoint parses "lat,lon" as rendered by Point.String.
func ParsePoint(s string) (Point, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return Point{}, fmt.Errorf("invalid point %q: want lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	return Point{Lat: lat, Lon: lon}, nil
}
