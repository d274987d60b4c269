package geo

import (
	"sync"

	"github.com/paulmach/orb"
)

// Trail keeps the most recent aircraft positions for drawing a flight path.
// Points closer than the spacing to the previous sample are skipped.
type Trail struct {
	mu       sync.RWMutex
	samples  []Point
	capacity int
	spacing  float64 // Meters
}

// NewTrail creates a trail holding at most capacity points spaced at least
// spacing meters apart.
func NewTrail(capacity int, spacing float64) *Trail {
	if capacity < 2 {
		capacity = 2
	}
	return &Trail{capacity: capacity, spacing: spacing}
}

// Push records p and reports whether it was kept.
func (t *Trail) Push(p Point) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.samples); n > 0 && Distance(t.samples[n-1], p) < t.spacing {
		return false
	}
	t.samples = append(t.samples, p)
	if len(t.samples) > t.capacity {
		t.samples = t.samples[len(t.samples)-t.capacity:]
	}
	return true
}

// Len returns the number of stored points.
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.samples)
}

// Track returns the ground track in degrees from the oldest to the newest
// sample, or def when fewer than two samples exist.
func (t *Trail) Track(def float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.samples) < 2 {
		return def
	}
	return Bearing(t.samples[0], t.samples[len(t.samples)-1])
}

// LineString returns the trail in orb (lon, lat) order.
func (t *Trail) LineString() orb.LineString {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ls := make(orb.LineString, len(t.samples))
	for i, p := range t.samples {
		ls[i] = p.Orb()
	}
	return ls
}

// Reset clears the trail.
func (t *Trail) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = nil
}
