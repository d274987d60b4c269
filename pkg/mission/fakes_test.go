package mission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"downshot/pkg/model"
	"downshot/pkg/telemetry"
)

// callLog records controller and executor calls in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(c string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(c string) int {
	n := 0
	for _, got := range l.all() {
		if got == c {
			n++
		}
	}
	return n
}

type fakeController struct {
	log        *callLog
	motorsErr  error
	takeoffErr error

	// When hold is set, callbacks are kept instead of invoked.
	hold       bool
	mu         sync.Mutex
	pendingOff func(error)
	pendingTO  func(error)
}

func (c *fakeController) TurnOffMotors(done func(error)) {
	if c.hold {
		c.mu.Lock()
		c.pendingOff = done
		c.mu.Unlock()
		c.log.add("turn_off_motors")
		return
	}
	c.log.add("turn_off_motors")
	done(c.motorsErr)
}

func (c *fakeController) StartTakeoff(done func(error)) {
	if c.hold {
		c.mu.Lock()
		c.pendingTO = done
		c.mu.Unlock()
		c.log.add("takeoff")
		return
	}
	c.log.add("takeoff")
	done(c.takeoffErr)
}

func (c *fakeController) motorsOffCallback() func(error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingOff
}

func (c *fakeController) takeoffCallback() func(error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingTO
}

type fakeExecutor struct {
	log         *callLog
	scheduleErr error

	mu        sync.Mutex
	listeners []ProgressFunc
	scheduled Plan
}

func (e *fakeExecutor) ScheduleElements(plan Plan) error {
	e.log.add("schedule")
	if e.scheduleErr != nil {
		return e.scheduleErr
	}
	e.mu.Lock()
	e.scheduled = append(Plan(nil), plan...)
	e.mu.Unlock()
	return nil
}

func (e *fakeExecutor) StartTimeline() { e.log.add("start_timeline") }

func (e *fakeExecutor) StopTimeline() { e.log.add("stop_timeline") }

func (e *fakeExecutor) RemoveAllListeners() {
	e.log.add("remove_listeners")
	e.mu.Lock()
	e.listeners = nil
	e.mu.Unlock()
}

func (e *fakeExecutor) AddListener(fn ProgressFunc) {
	e.log.add("add_listener")
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

func (e *fakeExecutor) emit(ev ProgressEvent) {
	e.mu.Lock()
	ls := append([]ProgressFunc(nil), e.listeners...)
	e.mu.Unlock()
	for _, fn := range ls {
		fn(ev)
	}
}

func (e *fakeExecutor) listenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

func (e *fakeExecutor) scheduledPlan() Plan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scheduled
}

type fakeState struct {
	mu sync.Mutex
	vs telemetry.VehicleState
}

func (s *fakeState) Snapshot() telemetry.VehicleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vs
}

func (s *fakeState) set(vs telemetry.VehicleState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vs = vs
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	done    bool
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires due timers on the caller's goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.done && !t.stopped && !t.at.After(c.now) {
			t.done = true
			due = append(due, t.fn)
		}
	}
	c.mu.Unlock()
	for _, f := range due {
		f()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done && !t.stopped {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

type fakeReporter struct {
	mu   sync.Mutex
	msgs []string
}

func (r *fakeReporter) Report(msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, fmt.Sprint(append([]any{msg}, args...)...))
}

func (r *fakeReporter) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

type fakeRecorder struct {
	mu     sync.Mutex
	runs   map[string]model.MissionRun
	events []model.MissionEvent
}

func (r *fakeRecorder) SaveRun(_ context.Context, run *model.MissionRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runs == nil {
		r.runs = make(map[string]model.MissionRun)
	}
	r.runs[run.ID] = *run
	return nil
}

func (r *fakeRecorder) AppendEvent(_ context.Context, ev *model.MissionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
	return nil
}

type fakeTracker struct {
	mu      sync.Mutex
	success map[string]int
	failure map[string]int
}

func (t *fakeTracker) TrackSuccess(cmd string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.success == nil {
		t.success = make(map[string]int)
	}
	t.success[cmd]++
}

func (t *fakeTracker) TrackFailure(cmd string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failure == nil {
		t.failure = make(map[string]int)
	}
	t.failure[cmd]++
}
