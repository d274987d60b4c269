// Package simvehicle is an in-process aircraft that implements the flight
// controller, timeline executor, telemetry stream, video feeds and SDK link,
// so the service runs end to end without hardware.
package simvehicle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"downshot/pkg/geo"
	"downshot/pkg/mission"
	"downshot/pkg/telemetry"
	"downshot/pkg/vehicle"
	"downshot/pkg/video"
)

var (
	// ErrInFlight is returned when motors are commanded off while airborne.
	ErrInFlight = errors.New("cannot stop motors in flight")
	// ErrAirborne is returned when takeoff is requested while airborne.
	ErrAirborne = errors.New("aircraft already airborne")
	// ErrTimelineRunning is returned when scheduling over a running timeline.
	ErrTimelineRunning = errors.New("timeline is running")
	// ErrEmptyTimeline is returned when starting with nothing scheduled.
	ErrEmptyTimeline = errors.New("no timeline elements scheduled")
)

const (
	tickRate = 100 * time.Millisecond

	takeoffAltitude = 1.2  // Meters, auto-takeoff hover height
	reportAltitude  = 0.6  // Meters, where takeoff success is reported
	gimbalRate      = 90.0 // Degrees per second
	photoDuration   = 500 * time.Millisecond
	arrivalRadius   = 1.0 // Meters
	altitudeSlack   = 0.3 // Meters
)

// Config holds the simulated aircraft parameters.
type Config struct {
	Model         string
	StartLat      float64
	StartLon      float64
	StartHeading  float64       // Degrees
	Speed         float64       // Horizontal, m/s
	ClimbRate     float64       // Vertical, m/s
	TelemetryRate time.Duration // Interval between state updates
}

// DefaultConfig returns a Matrice600 parked in Zurich.
func DefaultConfig() Config {
	return Config{
		Model:         "Matrice600",
		StartLat:      47.3769,
		StartLon:      8.5417,
		Speed:         10,
		ClimbRate:     3,
		TelemetryRate: 100 * time.Millisecond,
	}
}

type phase int

const (
	phaseParked phase = iota
	phaseTakeoff
	phaseHover
)

// Vehicle is the simulated aircraft.
type Vehicle struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	phase    phase
	motorsOn bool
	pos      geo.Point
	home     geo.Point
	alt      float64
	heading  float64
	gimbal   mission.Attitude
	photos   int

	takeoffDone func(error)

	plan      mission.Plan
	running   bool
	index     int
	stepTime  time.Duration
	returning bool

	listeners []mission.ProgressFunc

	nextSub     int
	stateSubs   map[int]func(telemetry.ControllerState)
	frameSubs   map[video.Channel]map[int]func([]byte)
	sinceReport time.Duration
	frameSeq    uint64

	linkState vehicle.State
	ratio     vehicle.AspectRatio

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var (
	_ mission.FlightController = (*Vehicle)(nil)
	_ mission.TimelineExecutor = (*Vehicle)(nil)
	_ telemetry.Source         = (*Vehicle)(nil)
	_ video.Feeds              = (*Vehicle)(nil)
	_ vehicle.Link             = (*Vehicle)(nil)
)

// New creates a parked vehicle and starts its physics loop.
func New(cfg Config) *Vehicle {
	v := newVehicle(cfg)
	v.wg.Add(1)
	go v.physicsLoop()
	return v
}

func newVehicle(cfg Config) *Vehicle {
	if cfg.Speed <= 0 {
		cfg.Speed = DefaultConfig().Speed
	}
	if cfg.ClimbRate <= 0 {
		cfg.ClimbRate = DefaultConfig().ClimbRate
	}
	if cfg.TelemetryRate <= 0 {
		cfg.TelemetryRate = tickRate
	}
	start := geo.Point{Lat: cfg.StartLat, Lon: cfg.StartLon}
	return &Vehicle{
		cfg:       cfg,
		logger:    slog.With("component", "simvehicle"),
		pos:       start,
		home:      start,
		heading:   cfg.StartHeading,
		stateSubs: make(map[int]func(telemetry.ControllerState)),
		frameSubs: make(map[video.Channel]map[int]func([]byte)),
		linkState: vehicle.StateDisconnected,
		stopCh:    make(chan struct{}),
	}
}

// Close stops the physics loop.
func (v *Vehicle) Close() error {
	v.once.Do(func() { close(v.stopCh) })
	v.wg.Wait()
	return nil
}

func (v *Vehicle) physicsLoop() {
	defer v.wg.Done()
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-v.stopCh:
			return
		case <-ticker.C:
			v.step(tickRate)
		}
	}
}

// Photos returns the number of photos taken.
func (v *Vehicle) Photos() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.photos
}

// PhotoAspectRatio returns the camera aspect ratio.
func (v *Vehicle) PhotoAspectRatio() vehicle.AspectRatio {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ratio
}

// Gimbal returns the current gimbal attitude.
func (v *Vehicle) Gimbal() mission.Attitude {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gimbal
}

// TurnOffMotors stops the motors. It fails while airborne.
func (v *Vehicle) TurnOffMotors(done func(error)) {
	v.mu.Lock()
	var err error
	if v.alt > 0 || v.phase == phaseTakeoff {
		err = ErrInFlight
	} else {
		v.motorsOn = false
		v.phase = phaseParked
	}
	v.mu.Unlock()
	go done(err)
}

// StartTakeoff spins up and climbs to hover height. Success is reported
// while still climbing.
func (v *Vehicle) StartTakeoff(done func(error)) {
	v.mu.Lock()
	if v.alt > 0 || v.phase == phaseTakeoff {
		v.mu.Unlock()
		go done(ErrAirborne)
		return
	}
	v.motorsOn = true
	v.phase = phaseTakeoff
	v.home = v.pos
	v.takeoffDone = done
	v.mu.Unlock()
	v.logger.Debug("Takeoff started")
}

// ScheduleElements replaces the scheduled plan.
func (v *Vehicle) ScheduleElements(plan mission.Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.running {
		return ErrTimelineRunning
	}
	v.plan = append(mission.Plan(nil), plan...)
	v.index = 0
	return nil
}

// StartTimeline runs the scheduled plan from the first element.
func (v *Vehicle) StartTimeline() {
	v.mu.Lock()
	if v.running {
		v.mu.Unlock()
		return
	}
	if len(v.plan) == 0 {
		v.mu.Unlock()
		v.emit(mission.ProgressEvent{Kind: mission.EventStartError, Err: ErrEmptyTimeline})
		return
	}
	v.running = true
	v.index = 0
	v.stepTime = 0
	v.returning = false
	first := v.plan[0]
	v.mu.Unlock()

	v.emit(mission.ProgressEvent{Kind: mission.EventStarted})
	v.emit(mission.ProgressEvent{Kind: mission.EventStarted, Element: &first})
}

// StopTimeline halts a running timeline. The aircraft holds position.
func (v *Vehicle) StopTimeline() {
	v.mu.Lock()
	wasRunning := v.running
	v.running = false
	v.mu.Unlock()
	if wasRunning {
		v.emit(mission.ProgressEvent{Kind: mission.EventStopped})
	}
}

// AddListener registers a progress listener.
func (v *Vehicle) AddListener(fn mission.ProgressFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners = append(v.listeners, fn)
}

// RemoveAllListeners drops every progress listener.
func (v *Vehicle) RemoveAllListeners() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners = nil
}

func (v *Vehicle) emit(ev mission.ProgressEvent) {
	v.mu.Lock()
	ls := append([]mission.ProgressFunc(nil), v.listeners...)
	v.mu.Unlock()
	for _, fn := range ls {
		fn(ev)
	}
}

// Subscribe delivers controller state at the configured telemetry rate.
func (v *Vehicle) Subscribe(fn func(telemetry.ControllerState)) func() {
	v.mu.Lock()
	id := v.nextSub
	v.nextSub++
	v.stateSubs[id] = fn
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		delete(v.stateSubs, id)
		v.mu.Unlock()
	}
}

// SubscribeFrames delivers synthetic frames for ch once per tick.
func (v *Vehicle) SubscribeFrames(ch video.Channel, fn func([]byte)) func() {
	v.mu.Lock()
	id := v.nextSub
	v.nextSub++
	if v.frameSubs[ch] == nil {
		v.frameSubs[ch] = make(map[int]func([]byte))
	}
	v.frameSubs[ch][id] = fn
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		delete(v.frameSubs[ch], id)
		v.mu.Unlock()
	}
}

// Register accepts any non-empty app key.
func (v *Vehicle) Register(_ context.Context, appKey string) error {
	if appKey == "" {
		return vehicle.ErrNoAppKey
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.linkState == vehicle.StateDisconnected {
		v.linkState = vehicle.StateRegistered
	}
	return nil
}

// Connect connects the simulated product.
func (v *Vehicle) Connect(_ context.Context) (vehicle.Product, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.linkState == vehicle.StateDisconnected {
		return vehicle.Product{}, vehicle.ErrNotRegistered
	}
	v.linkState = vehicle.StateConnected
	return vehicle.Product{Model: v.cfg.Model, Serial: "SIM-0001", Firmware: "sim"}, nil
}

// SetPhotoAspectRatio sets the camera aspect ratio.
func (v *Vehicle) SetPhotoAspectRatio(_ context.Context, ratio vehicle.AspectRatio) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.linkState != vehicle.StateConnected {
		return vehicle.ErrNotConnected
	}
	v.ratio = ratio
	return nil
}

// State returns the link state.
func (v *Vehicle) State() vehicle.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.linkState
}

// step advances the simulation by dt and then delivers callbacks, events,
// telemetry and frames outside the lock.
func (v *Vehicle) step(dt time.Duration) {
	var (
		callbacks []func()
		events    []mission.ProgressEvent
	)

	v.mu.Lock()
	secs := dt.Seconds()

	switch v.phase {
	case phaseTakeoff:
		v.alt = math.Min(takeoffAltitude, v.alt+v.cfg.ClimbRate*secs)
		if v.takeoffDone != nil && v.alt >= reportAltitude {
			done := v.takeoffDone
			v.takeoffDone = nil
			callbacks = append(callbacks, func() { done(nil) })
		}
		if v.alt >= takeoffAltitude {
			v.phase = phaseHover
		}
	}

	if v.running && v.phase == phaseHover {
		events = v.advanceTimeline(dt)
	}

	state := v.controllerState()
	var stateSubs []func(telemetry.ControllerState)
	v.sinceReport += dt
	if v.sinceReport >= v.cfg.TelemetryRate {
		v.sinceReport = 0
		for _, fn := range v.stateSubs {
			stateSubs = append(stateSubs, fn)
		}
	}

	v.frameSeq++
	frames := make(map[video.Channel][]func([]byte))
	for ch, subs := range v.frameSubs {
		for _, fn := range subs {
			frames[ch] = append(frames[ch], fn)
		}
	}
	seq, pitch := v.frameSeq, v.gimbal.Pitch
	v.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	for _, ev := range events {
		v.emit(ev)
	}
	for _, fn := range stateSubs {
		fn(state)
	}
	for ch, subs := range frames {
		frame := []byte(fmt.Sprintf("%s seq=%d pitch=%.0f", ch, seq, pitch))
		for _, fn := range subs {
			fn(frame)
		}
	}
}

func (v *Vehicle) controllerState() telemetry.ControllerState {
	p := v.pos
	return telemetry.ControllerState{
		MotorsOn:   v.motorsOn,
		IsFlying:   v.alt > 0,
		YawDegrees: geo.NormalizeAngle(v.heading),
		Altitude:   v.alt,
		Position:   &p,
	}
}

// advanceTimeline works on the current element. Called with mu held.
func (v *Vehicle) advanceTimeline(dt time.Duration) []mission.ProgressEvent {
	if v.index >= len(v.plan) {
		return nil
	}
	a := v.plan[v.index]
	if !v.work(a, dt) {
		return nil
	}

	events := []mission.ProgressEvent{{Kind: mission.EventFinished, Element: &a}}
	v.index++
	v.stepTime = 0
	v.returning = false
	if v.index < len(v.plan) {
		next := v.plan[v.index]
		return append(events, mission.ProgressEvent{Kind: mission.EventStarted, Element: &next})
	}
	v.running = false
	return append(events, mission.ProgressEvent{Kind: mission.EventFinished})
}

// work applies dt to action a and reports whether it is complete.
func (v *Vehicle) work(a mission.Action, dt time.Duration) bool {
	secs := dt.Seconds()
	v.stepTime += dt

	switch a.Kind() {
	case mission.KindGoTo:
		altDone := v.climbToward(a.Altitude(), secs)
		posDone := v.flyToward(a.Coordinate(), secs)
		return altDone && posDone
	case mission.KindGimbalAttitude:
		want := a.Attitude()
		v.gimbal.Pitch = approach(v.gimbal.Pitch, want.Pitch, gimbalRate*secs)
		v.gimbal.Roll = approach(v.gimbal.Roll, want.Roll, gimbalRate*secs)
		v.gimbal.Yaw = approach(v.gimbal.Yaw, want.Yaw, gimbalRate*secs)
		return v.gimbal == want
	case mission.KindShootPhoto:
		if v.stepTime < photoDuration {
			return false
		}
		v.photos++
		v.logger.Info("Photo captured", "count", v.photos, "pos", v.pos.String(), "pitch", v.gimbal.Pitch)
		return true
	case mission.KindReturnHome:
		if !v.returning {
			if !v.flyToward(v.home, secs) {
				return false
			}
			v.returning = true
		}
		v.alt = math.Max(0, v.alt-v.cfg.ClimbRate*secs)
		if v.alt > 0 {
			return false
		}
		v.phase = phaseParked
		v.motorsOn = false
		return true
	}
	return true
}

func (v *Vehicle) climbToward(target, secs float64) bool {
	v.alt = approach(v.alt, target, v.cfg.ClimbRate*secs)
	return math.Abs(v.alt-target) <= altitudeSlack
}

func (v *Vehicle) flyToward(target geo.Point, secs float64) bool {
	dist := geo.Distance(v.pos, target)
	if dist <= arrivalRadius {
		v.pos = target
		return true
	}
	v.heading = geo.Bearing(v.pos, target)
	move := v.cfg.Speed * secs
	if move >= dist {
		v.pos = target
		return true
	}
	v.pos = geo.DestinationPoint(v.pos, move, v.heading)
	return false
}

// approach moves cur toward want by at most maxStep.
func approach(cur, want, maxStep float64) float64 {
	d := want - cur
	if math.Abs(d) <= maxStep {
		return want
	}
	if d > 0 {
		return cur + maxStep
	}
	return cur - maxStep
}
