package mission

import (
	"context"
	"fmt"
	"time"

	"downshot/pkg/model"
	"downshot/pkg/telemetry"
)

// FlightController issues motor and takeoff commands. Completion callbacks
// may run on any goroutine.
type FlightController interface {
	TurnOffMotors(done func(error))
	StartTakeoff(done func(error))
}

// EventKind is the kind of a timeline progress event.
type EventKind int

const (
	EventStarted EventKind = iota + 1
	EventStartError
	EventProgressed
	EventPaused
	EventResumed
	EventStopped
	EventStopError
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventStartError:
		return "start_error"
	case EventProgressed:
		return "progressed"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventStopped:
		return "stopped"
	case EventStopError:
		return "stop_error"
	case EventFinished:
		return "finished"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// ProgressEvent is delivered by the timeline executor. Element is nil for
// events about the timeline as a whole.
type ProgressEvent struct {
	Kind    EventKind
	Element *Action
	Err     error
	Info    string
}

// ProgressFunc receives timeline progress events.
type ProgressFunc func(ProgressEvent)

// TimelineExecutor runs a scheduled plan step by step.
type TimelineExecutor interface {
	ScheduleElements(plan Plan) error
	StartTimeline()
	StopTimeline()
	RemoveAllListeners()
	AddListener(fn ProgressFunc)
}

// StateReader provides the latest vehicle state.
type StateReader interface {
	Snapshot() telemetry.VehicleState
}

// Reporter receives operator-facing mission messages.
type Reporter interface {
	Report(msg string, args ...any)
}

// Recorder persists mission runs and their timelines.
type Recorder interface {
	SaveRun(ctx context.Context, run *model.MissionRun) error
	AppendEvent(ctx context.Context, ev *model.MissionEvent) error
}

// CommandTracker counts command outcomes.
type CommandTracker interface {
	TrackSuccess(command string)
	TrackFailure(command string)
}

// Settings supplies per-attempt mission parameters.
type Settings interface {
	MissionAltitude(ctx context.Context) float64
	SettleDelay(ctx context.Context) time.Duration
	MissionTimeout(ctx context.Context) time.Duration
	ResetTimeline(ctx context.Context) bool
}

// Timer is a pending Clock callback.
type Timer interface {
	Stop() bool
}

// Clock abstracts time for the settle delay and mission timeout.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}
