package mission

import (
	"downshot/pkg/geo"
)

// DefaultAltitude is the GoTo altitude in meters.
const DefaultAltitude = 30.0

// Gimbal pitch used for the downward photo.
const downshotPitch = -90.0

// Plan is the ordered action list submitted to the timeline executor.
type Plan []Action

// BuildPlan returns the five-step downshot plan for target:
// GoTo(target, altitude), gimbal down, photo, gimbal level, return home.
func BuildPlan(target *geo.Point, altitude float64) (Plan, error) {
	if target == nil {
		return nil, ErrNoTarget
	}
	return Plan{
		GoTo(*target, altitude),
		GimbalAttitude(downshotPitch, 0, 0),
		ShootPhoto(),
		GimbalAttitude(0, 0, 0),
		ReturnHome(),
	}, nil
}

// Validate checks actions in order and stops at the first invalid one.
func (p Plan) Validate() error {
	for i, a := range p {
		if err := a.Validate(); err != nil {
			return &ValidationError{Index: i, Kind: a.Kind(), Err: err}
		}
	}
	return nil
}

// Kinds lists the action kinds in plan order.
func (p Plan) Kinds() []Kind {
	kinds := make([]Kind, len(p))
	for i, a := range p {
		kinds[i] = a.Kind()
	}
	return kinds
}
