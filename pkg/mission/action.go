// Package mission turns a selected target into a fixed action plan and
// drives it through takeoff and timeline execution.
package mission

import (
	"fmt"
	"math"

	"downshot/pkg/geo"
)

// Kind tags an Action.
type Kind int

const (
	KindGoTo Kind = iota + 1
	KindGimbalAttitude
	KindShootPhoto
	KindReturnHome
)

func (k Kind) String() string {
	switch k {
	case KindGoTo:
		return "go_to"
	case KindGimbalAttitude:
		return "gimbal_attitude"
	case KindShootPhoto:
		return "shoot_photo"
	case KindReturnHome:
		return "return_home"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Action limits accepted by Validate.
const (
	MinAltitude = 2.0   // Meters
	MaxAltitude = 500.0 // Meters

	MinGimbalPitch = -90.0
	MaxGimbalPitch = 30.0
	MaxGimbalRoll  = 90.0
	MaxGimbalYaw   = 320.0
)

// Attitude is a gimbal orientation in degrees.
type Attitude struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// Action is one immutable timeline step. Build it with GoTo, GimbalAttitude,
// ShootPhoto or ReturnHome.
type Action struct {
	kind     Kind
	coord    geo.Point
	altitude float64
	attitude Attitude
}

// GoTo flies to p at altitude meters.
func GoTo(p geo.Point, altitude float64) Action {
	return Action{kind: KindGoTo, coord: p, altitude: altitude}
}

// GimbalAttitude rotates the camera gimbal.
func GimbalAttitude(pitch, roll, yaw float64) Action {
	return Action{kind: KindGimbalAttitude, attitude: Attitude{Pitch: pitch, Roll: roll, Yaw: yaw}}
}

// ShootPhoto captures one photo.
func ShootPhoto() Action {
	return Action{kind: KindShootPhoto}
}

// ReturnHome flies back to the home point and lands.
func ReturnHome() Action {
	return Action{kind: KindReturnHome}
}

func (a Action) Kind() Kind { return a.kind }

// Coordinate is the GoTo destination.
func (a Action) Coordinate() geo.Point { return a.coord }

// Altitude is the GoTo altitude in meters.
func (a Action) Altitude() float64 { return a.altitude }

// Attitude is the gimbal orientation of a GimbalAttitude action.
func (a Action) Attitude() Attitude { return a.attitude }

func (a Action) String() string {
	switch a.kind {
	case KindGoTo:
		return fmt.Sprintf("go_to(%s @ %.1fm)", a.coord, a.altitude)
	case KindGimbalAttitude:
		return fmt.Sprintf("gimbal_attitude(%.0f,%.0f,%.0f)", a.attitude.Pitch, a.attitude.Roll, a.attitude.Yaw)
	default:
		return a.kind.String()
	}
}

// Validate checks the action's own parameters.
func (a Action) Validate() error {
	switch a.kind {
	case KindGoTo:
		if !a.coord.Valid() {
			return fmt.Errorf("%w: %s", ErrInvalidCoordinate, a.coord)
		}
		if math.IsNaN(a.altitude) || a.altitude < MinAltitude || a.altitude > MaxAltitude {
			return fmt.Errorf("%w: %.1fm outside [%.0f, %.0f]", ErrInvalidAltitude, a.altitude, MinAltitude, MaxAltitude)
		}
	case KindGimbalAttitude:
		at := a.attitude
		if math.IsNaN(at.Pitch) || math.IsNaN(at.Roll) || math.IsNaN(at.Yaw) {
			return fmt.Errorf("%w: NaN component", ErrInvalidAttitude)
		}
		if at.Pitch < MinGimbalPitch || at.Pitch > MaxGimbalPitch {
			return fmt.Errorf("%w: pitch %.1f", ErrInvalidAttitude, at.Pitch)
		}
		if math.Abs(at.Roll) > MaxGimbalRoll {
			return fmt.Errorf("%w: roll %.1f", ErrInvalidAttitude, at.Roll)
		}
		if math.Abs(at.Yaw) > MaxGimbalYaw {
			return fmt.Errorf("%w: yaw %.1f", ErrInvalidAttitude, at.Yaw)
		}
	case KindShootPhoto, KindReturnHome:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, a.kind)
	}
	return nil
}
