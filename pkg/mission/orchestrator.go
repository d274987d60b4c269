package mission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"downshot/pkg/geo"
	"downshot/pkg/model"
)

// TargetSink is notified when a new target is selected (the map surface).
type TargetSink interface {
	SetTarget(p geo.Point)
}

// Deps are the collaborators of an Orchestrator. Controller, Executor and
// State are required; the rest are optional.
type Deps struct {
	Controller FlightController
	Executor   TimelineExecutor
	State      StateReader

	Settings Settings
	Reporter Reporter
	Recorder Recorder
	Tracker  CommandTracker
	Targets  TargetSink
	Clock    Clock
}

// Options are the fixed mission parameters, used when Deps.Settings is nil.
// Settings, when set, is read at the start of every attempt instead.
type Options struct {
	Altitude    float64       // GoTo altitude, meters
	SettleDelay time.Duration // Wait after reported takeoff success
	Timeout     time.Duration // Max time in Executing; 0 waits forever

	// ResetTimelineBeforeStart clears listeners and stops any running
	// timeline before a new attempt arms the aircraft.
	ResetTimelineBeforeStart bool
}

// DefaultOptions returns the stock mission parameters.
func DefaultOptions() Options {
	return Options{
		Altitude:                 DefaultAltitude,
		SettleDelay:              5 * time.Second,
		ResetTimelineBeforeStart: true,
	}
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State     RunState   `json:"state"`
	Target    *geo.Point `json:"target,omitempty"`
	RunID     string     `json:"run_id,omitempty"`
	Error     string     `json:"error,omitempty"`
	Err       error      `json:"-"`
	StartedAt time.Time  `json:"started_at,omitzero"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Orchestrator drives one mission attempt at a time from target selection
// to completion. All state changes run serially on a single dispatch
// context; controller and executor callbacks are re-posted onto it, so
// they may arrive on any goroutine.
type Orchestrator struct {
	deps   Deps
	opts   Options
	clock  Clock
	logger *slog.Logger

	qmu      sync.Mutex
	queue    []func()
	draining bool

	smu    sync.RWMutex
	status Status
	target *geo.Point

	// Owned by the dispatch context.
	ctx          context.Context
	runID        string
	run          *model.MissionRun
	plan         Plan
	settle       time.Duration
	timeout      time.Duration
	settleTimer  Timer
	timeoutTimer Timer
}

// NewOrchestrator creates an idle orchestrator.
func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock
	}
	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		clock:  clock,
		logger: slog.With("component", "mission"),
		status: Status{State: StateIdle, UpdatedAt: clock.Now()},
		ctx:    context.Background(),
	}
}

// dispatch runs fn on the dispatch context. If another goroutine is already
// draining the queue, fn is queued and dispatch returns immediately.
func (o *Orchestrator) dispatch(fn func()) {
	o.qmu.Lock()
	o.queue = append(o.queue, fn)
	if o.draining {
		o.qmu.Unlock()
		return
	}
	o.draining = true
	for len(o.queue) > 0 {
		next := o.queue[0]
		o.queue[0] = nil
		o.queue = o.queue[1:]
		o.qmu.Unlock()
		next()
		o.qmu.Lock()
	}
	o.draining = false
	o.qmu.Unlock()
}

// Phases of a call queued on the dispatch context.
const (
	callPending int32 = iota
	callRunning
	callAbandoned
)

// call runs fn on the dispatch context and waits for its result.
// It must not be invoked from a Reporter, Recorder or other callback
// running on the dispatch context.
//
// If ctx ends while fn is still queued, fn is dropped and call reports
// false. Once fn has begun, call waits for it, so the result always
// matches what fn did.
func (o *Orchestrator) call(ctx context.Context, fn func() bool) bool {
	var phase atomic.Int32
	res := make(chan bool, 1)
	o.dispatch(func() {
		if !phase.CompareAndSwap(callPending, callRunning) {
			return
		}
		res <- fn()
	})
	select {
	case ok := <-res:
		return ok
	case <-ctx.Done():
		if phase.CompareAndSwap(callPending, callAbandoned) {
			return false
		}
		return <-res
	}
}

// SetTarget stores p as the mission target, replacing any previous one.
func (o *Orchestrator) SetTarget(p geo.Point) {
	o.dispatch(func() {
		o.smu.Lock()
		t := p
		o.target = &t
		o.status.Target = &t
		o.smu.Unlock()

		o.logger.Debug("Target set", "target", p.String())
		if o.deps.Targets != nil {
			o.deps.Targets.SetTarget(p)
		}
	})
}

// Target returns the current target, or nil.
func (o *Orchestrator) Target() *geo.Point {
	o.smu.RLock()
	defer o.smu.RUnlock()
	if o.target == nil {
		return nil
	}
	t := *o.target
	return &t
}

// State returns the current run state.
func (o *Orchestrator) State() RunState {
	o.smu.RLock()
	defer o.smu.RUnlock()
	return o.status.State
}

// Status returns a copy of the orchestrator status.
func (o *Orchestrator) Status() Status {
	o.smu.RLock()
	defer o.smu.RUnlock()
	s := o.status
	if s.Target != nil {
		t := *s.Target
		s.Target = &t
	}
	return s
}

// StartMission begins an attempt for the current target. It reports false
// and changes nothing when no target is set or an attempt is not Idle.
// The attempt continues in the background after StartMission returns.
// If ctx ends before the start is dispatched, nothing starts and the
// result is false.
func (o *Orchestrator) StartMission(ctx context.Context) bool {
	return o.call(ctx, func() bool { return o.start(context.WithoutCancel(ctx)) })
}

// Reset returns a Completed or Failed orchestrator to Idle so a new attempt
// can start. It reports false while an attempt is in progress.
func (o *Orchestrator) Reset(ctx context.Context) bool {
	return o.call(ctx, func() bool {
		st := o.currentState()
		if st.Active() {
			return false
		}
		if st == StateIdle {
			return true
		}
		o.runID = ""
		o.run = nil
		o.plan = nil
		o.smu.Lock()
		o.status = Status{State: StateIdle, Target: o.target, UpdatedAt: o.clock.Now()}
		o.smu.Unlock()
		o.logger.Info("Mission reset")
		return true
	})
}

func (o *Orchestrator) currentState() RunState {
	o.smu.RLock()
	defer o.smu.RUnlock()
	return o.status.State
}

func (o *Orchestrator) start(ctx context.Context) bool {
	o.smu.RLock()
	target := o.target
	state := o.status.State
	o.smu.RUnlock()

	if target == nil {
		o.logger.Debug("Start ignored: no target")
		return false
	}
	if state != StateIdle {
		o.logger.Debug("Start ignored: mission not idle", "state", state)
		return false
	}

	params := o.parameters(ctx)
	alt := params.altitude
	plan, err := BuildPlan(target, alt)
	if err != nil {
		return false
	}

	now := o.clock.Now()
	o.ctx = ctx
	o.runID = uuid.NewString()
	o.plan = plan
	o.settle = params.settle
	o.timeout = params.timeout
	o.run = &model.MissionRun{
		ID:        o.runID,
		TargetLat: target.Lat,
		TargetLon: target.Lon,
		Altitude:  alt,
		StartedAt: now,
	}
	o.smu.Lock()
	o.status.RunID = o.runID
	o.status.StartedAt = now
	o.status.Error = ""
	o.status.Err = nil
	o.smu.Unlock()

	o.transition(StateValidating, fmt.Sprintf("Mission to %s at %.0fm", target, alt))

	if err := plan.Validate(); err != nil {
		o.fail(err)
		return true
	}

	o.transition(StatePreparingTakeoff, "Plan valid")

	vs := o.deps.State.Snapshot()
	if vs.IsFlying {
		o.fail(ErrAlreadyFlying)
		return true
	}

	if params.resetTimeline {
		o.deps.Executor.RemoveAllListeners()
		o.deps.Executor.StopTimeline()
	}

	id := o.runID
	if vs.MotorsOn {
		o.report("Motors already on, taking off")
		o.attachListener(id)
		o.takeoff(id)
		return true
	}

	o.report("Turning off motors")
	o.deps.Controller.TurnOffMotors(func(err error) {
		o.dispatch(func() { o.onMotorsOff(id, err) })
	})
	return true
}

// attemptParams are the settings captured when an attempt starts.
type attemptParams struct {
	altitude      float64
	settle        time.Duration
	timeout       time.Duration
	resetTimeline bool
}

func (o *Orchestrator) parameters(ctx context.Context) attemptParams {
	if s := o.deps.Settings; s != nil {
		return attemptParams{
			altitude:      s.MissionAltitude(ctx),
			settle:        s.SettleDelay(ctx),
			timeout:       s.MissionTimeout(ctx),
			resetTimeline: s.ResetTimeline(ctx),
		}
	}
	return attemptParams{
		altitude:      o.opts.Altitude,
		settle:        o.opts.SettleDelay,
		timeout:       o.opts.Timeout,
		resetTimeline: o.opts.ResetTimelineBeforeStart,
	}
}

// current reports whether id is the attempt in progress and in state want.
func (o *Orchestrator) current(id string, want RunState) bool {
	if id == "" || id != o.runID {
		return false
	}
	return o.currentState() == want
}

func (o *Orchestrator) onMotorsOff(id string, err error) {
	if !o.current(id, StatePreparingTakeoff) {
		o.logger.Debug("Stale motors-off callback", "run_id", id)
		return
	}
	if err != nil {
		o.track(CommandTurnOffMotors, err)
		o.fail(&CommandError{Command: CommandTurnOffMotors, Err: err})
		return
	}
	o.track(CommandTurnOffMotors, nil)
	o.attachListener(id)
	o.takeoff(id)
}

func (o *Orchestrator) attachListener(id string) {
	o.deps.Executor.AddListener(func(ev ProgressEvent) {
		o.dispatch(func() { o.onProgress(id, ev) })
	})
}

func (o *Orchestrator) takeoff(id string) {
	o.transition(StateTakingOff, "Taking off")
	o.deps.Controller.StartTakeoff(func(err error) {
		o.dispatch(func() { o.onTakeoff(id, err) })
	})
}

func (o *Orchestrator) onTakeoff(id string, err error) {
	if !o.current(id, StateTakingOff) {
		o.logger.Debug("Stale takeoff callback", "run_id", id)
		return
	}
	if err != nil {
		o.track(CommandTakeoff, err)
		o.fail(&CommandError{Command: CommandTakeoff, Err: err})
		return
	}
	o.track(CommandTakeoff, nil)
	o.report("Takeoff reported, settling", "delay", o.settle)
	o.settleTimer = o.clock.AfterFunc(o.settle, func() {
		o.dispatch(func() { o.execute(id) })
	})
}

func (o *Orchestrator) execute(id string) {
	o.settleTimer = nil
	if !o.current(id, StateTakingOff) {
		return
	}
	o.transition(StateExecuting, "Starting timeline")

	if err := o.deps.Executor.ScheduleElements(o.plan); err != nil {
		o.track(CommandSchedule, err)
		o.fail(&CommandError{Command: CommandSchedule, Err: err})
		return
	}
	o.track(CommandSchedule, nil)
	o.deps.Executor.StartTimeline()

	if o.timeout > 0 {
		o.timeoutTimer = o.clock.AfterFunc(o.timeout, func() {
			o.dispatch(func() { o.onTimeout(id) })
		})
	}
}

func (o *Orchestrator) onProgress(id string, ev ProgressEvent) {
	if id != o.runID {
		return
	}
	if ev.Err != nil {
		err := &ExecutorEventError{Event: ev.Kind, Element: ev.Element, Err: ev.Err}
		o.report("Timeline error", "error", err)
		o.record(string(o.currentState()), err.Error())
		return
	}
	if ev.Element != nil {
		o.logger.Debug("Timeline progress", "event", ev.Kind, "element", ev.Element.String(), "info", ev.Info)
		if ev.Kind == EventFinished {
			o.record(string(o.currentState()), "Finished "+ev.Element.String())
		}
		return
	}
	if ev.Kind != EventFinished {
		o.logger.Debug("Timeline event", "event", ev.Kind, "info", ev.Info)
		return
	}
	if o.currentState() != StateExecuting {
		return
	}

	o.deps.Executor.RemoveAllListeners()
	o.deps.Executor.StopTimeline()
	o.stopTimers()
	o.finish(StateCompleted, nil, "Mission complete")
}

func (o *Orchestrator) onTimeout(id string) {
	o.timeoutTimer = nil
	if !o.current(id, StateExecuting) {
		return
	}
	o.deps.Executor.RemoveAllListeners()
	o.deps.Executor.StopTimeline()
	o.fail(fmt.Errorf("%w after %s", ErrMissionTimeout, o.timeout))
}

func (o *Orchestrator) stopTimers() {
	if o.settleTimer != nil {
		o.settleTimer.Stop()
		o.settleTimer = nil
	}
	if o.timeoutTimer != nil {
		o.timeoutTimer.Stop()
		o.timeoutTimer = nil
	}
}

func (o *Orchestrator) fail(err error) {
	o.stopTimers()

	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		o.logger.Warn("Mission plan rejected", "run_id", o.runID, "error", err)
	default:
		o.logger.Error("Mission failed", "run_id", o.runID, "error", err)
	}
	o.finish(StateFailed, err, "Mission failed: "+err.Error())
}

func (o *Orchestrator) finish(st RunState, err error, msg string) {
	if o.run != nil {
		now := o.clock.Now()
		o.run.FinishedAt = &now
		if err != nil {
			o.run.Error = err.Error()
		}
	}
	o.smu.Lock()
	if err != nil {
		o.status.Error = err.Error()
		o.status.Err = err
	}
	o.smu.Unlock()
	o.transition(st, msg)
}

func (o *Orchestrator) transition(st RunState, msg string) {
	now := o.clock.Now()
	o.smu.Lock()
	prev := o.status.State
	o.status.State = st
	o.status.UpdatedAt = now
	o.smu.Unlock()

	o.logger.Info("Mission state", "from", prev, "to", st, "run_id", o.runID)
	if o.deps.Reporter != nil {
		o.deps.Reporter.Report(msg, "state", string(st))
	}

	if o.run != nil {
		o.run.State = string(st)
		o.run.UpdatedAt = now
		if o.deps.Recorder != nil {
			if err := o.deps.Recorder.SaveRun(o.ctx, o.run); err != nil {
				o.logger.Warn("Failed to save mission run", "run_id", o.runID, "error", err)
			}
		}
	}
	o.record(string(st), msg)
}

func (o *Orchestrator) report(msg string, args ...any) {
	o.logger.Info(msg, args...)
	if o.deps.Reporter != nil {
		o.deps.Reporter.Report(msg, args...)
	}
}

func (o *Orchestrator) record(state, msg string) {
	if o.deps.Recorder == nil || o.runID == "" {
		return
	}
	ev := &model.MissionEvent{RunID: o.runID, State: state, Message: msg, CreatedAt: o.clock.Now()}
	if err := o.deps.Recorder.AppendEvent(o.ctx, ev); err != nil {
		o.logger.Warn("Failed to record mission event", "run_id", o.runID, "error", err)
	}
}

func (o *Orchestrator) track(command string, err error) {
	if o.deps.Tracker == nil {
		return
	}
	if err != nil {
		o.deps.Tracker.TrackFailure(command)
		return
	}
	o.deps.Tracker.TrackSuccess(command)
}
