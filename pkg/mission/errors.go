package mission

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTarget is returned when a plan is requested before a target is set.
	ErrNoTarget = errors.New("no mission target set")
	// ErrAlreadyFlying fails an attempt that would start while airborne.
	ErrAlreadyFlying = errors.New("aircraft is already flying")
	// ErrMissionTimeout fails an attempt whose timeline did not finish in time.
	ErrMissionTimeout = errors.New("mission timed out waiting for timeline to finish")

	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrInvalidAltitude   = errors.New("invalid altitude")
	ErrInvalidAttitude   = errors.New("invalid gimbal attitude")
	ErrUnknownAction     = errors.New("unknown action kind")
)

// ValidationError reports the first plan action that failed validation.
type ValidationError struct {
	Index int
	Kind  Kind
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("action %d (%s) invalid: %v", e.Index, e.Kind, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Command names used in CommandError and the command tracker.
const (
	CommandTurnOffMotors = "turn_off_motors"
	CommandTakeoff       = "takeoff"
	CommandSchedule      = "schedule_timeline"
)

// CommandError reports a failed flight controller or executor command.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecutorEventError wraps an error carried by a timeline progress event.
// It is reported only and never changes the run state.
type ExecutorEventError struct {
	Event   EventKind
	Element *Action
	Err     error
}

func (e *ExecutorEventError) Error() string {
	if e.Element != nil {
		return fmt.Sprintf("timeline %s on %s: %v", e.Event, e.Element, e.Err)
	}
	return fmt.Sprintf("timeline %s: %v", e.Event, e.Err)
}

func (e *ExecutorEventError) Unwrap() error { return e.Err }
