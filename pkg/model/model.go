package model

import (
	"time"
)

// MissionRun is the persisted record of one mission attempt.
type MissionRun struct {
	ID        string  `json:"id"`         // UUID
	TargetLat float64 `json:"target_lat"` // Degrees
	TargetLon float64 `json:"target_lon"` // Degrees
	Altitude  float64 `json:"altitude"`   // Meters, GoTo altitude
	State     string  `json:"state"`      // Last run state (idle ... failed)
	Error     string  `json:"error,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"` // Set once Completed or Failed
}

// Terminal reports whether the run reached Completed or Failed.
func (r *MissionRun) Terminal() bool {
	return r.FinishedAt != nil
}

// MissionEvent is one line of a run's timeline: a state transition,
// a command outcome or an executor progress report.
type MissionEvent struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	State     string    `json:"state"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
