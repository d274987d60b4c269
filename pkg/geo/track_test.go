package geo

import (
	"math"
	"testing"
)

func TestTrail_Track(t *testing.T) {
	tests := []struct {
		name       string
		capacity   int
		points     []Point
		wantTracks []float64 // Track after each push
	}{
		{
			name:     "Three point window",
			capacity: 3,
			points: []Point{
				{Lat: 10, Lon: 20},
				{Lat: 11, Lon: 20},
				{Lat: 11, Lon: 21},
				{Lat: 10, Lon: 21},
			},
			wantTracks: []float64{
				99,  // Default
				0,   // 10,20 -> 11,20
				45,  // 10,20 -> 11,21
				135, // 11,20 -> 10,21
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTrail(tt.capacity, 0)
			for i, p := range tt.points {
				tr.Push(p)
				got := tr.Track(99)
				if math.Abs(got-tt.wantTracks[i]) > 1.0 {
					t.Errorf("Step %d: Track() = %v, want approx %v", i, got, tt.wantTracks[i])
				}
			}
		})
	}
}

func TestTrail_Spacing(t *testing.T) {
	tr := NewTrail(10, 5)
	start := Point{Lat: 47, Lon: 8}

	if !tr.Push(start) {
		t.Fatal("first point should be kept")
	}
	if tr.Push(DestinationPoint(start, 2, 90)) {
		t.Error("point 2m away should be skipped")
	}
	if !tr.Push(DestinationPoint(start, 6, 90)) {
		t.Error("point 6m away should be kept")
	}
	if tr.Len() != 2 {
		t.Errorf("Expected 2 samples, got %d", tr.Len())
	}
}

func TestTrail_LineStringAndReset(t *testing.T) {
	tr := NewTrail(5, 0)
	tr.Push(Point{Lat: 10, Lon: 20})
	tr.Push(Point{Lat: 11, Lon: 21})

	ls := tr.LineString()
	if len(ls) != 2 || ls[0][0] != 20 || ls[0][1] != 10 {
		t.Errorf("LineString() = %v, want lon/lat order", ls)
	}

	tr.Reset()
	if tr.Len() != 0 {
		t.Errorf("Expected 0 samples after reset, got %d", tr.Len())
	}
}
