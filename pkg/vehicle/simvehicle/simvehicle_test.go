package simvehicle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"downshot/pkg/geo"
	"downshot/pkg/mission"
	"downshot/pkg/telemetry"
	"downshot/pkg/vehicle"
	"downshot/pkg/video"
)

type eventLog struct {
	mu     sync.Mutex
	events []mission.ProgressEvent
}

func (l *eventLog) add(ev mission.ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []mission.ProgressEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]mission.ProgressEvent(nil), l.events...)
}

func (l *eventLog) finishedAll() bool {
	for _, ev := range l.all() {
		if ev.Kind == mission.EventFinished && ev.Element == nil {
			return true
		}
	}
	return false
}

func waitCallback(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
		return nil
	}
}

// hover takes off and steps until the vehicle holds hover height.
func hover(t *testing.T, v *Vehicle) {
	t.Helper()
	done := make(chan error, 1)
	v.StartTakeoff(func(err error) { done <- err })
	for i := 0; i < 20; i++ {
		v.step(tickRate)
	}
	require.NoError(t, waitCallback(t, done))
}

func TestTakeoffReportsBeforeHover(t *testing.T) {
	v := newVehicle(DefaultConfig())
	done := make(chan error, 1)
	v.StartTakeoff(func(err error) { done <- err })

	v.step(tickRate) // 0.3m
	select {
	case <-done:
		t.Fatal("takeoff reported too early")
	default:
	}

	v.step(tickRate) // 0.6m
	require.NoError(t, waitCallback(t, done))

	st := v.controllerState()
	assert.True(t, st.MotorsOn)
	assert.True(t, st.IsFlying)
	assert.Less(t, st.Altitude, takeoffAltitude)
}

func TestMotorsAndTakeoffErrors(t *testing.T) {
	v := newVehicle(DefaultConfig())

	off := make(chan error, 1)
	v.TurnOffMotors(func(err error) { off <- err })
	assert.NoError(t, waitCallback(t, off))

	hover(t, v)

	v.TurnOffMotors(func(err error) { off <- err })
	assert.ErrorIs(t, waitCallback(t, off), ErrInFlight)

	again := make(chan error, 1)
	v.StartTakeoff(func(err error) { again <- err })
	assert.ErrorIs(t, waitCallback(t, again), ErrAirborne)
}

func TestTimelineRunsDownshotPlan(t *testing.T) {
	cfg := DefaultConfig()
	v := newVehicle(cfg)
	log := &eventLog{}
	v.AddListener(log.add)

	hover(t, v)

	home := geo.Point{Lat: cfg.StartLat, Lon: cfg.StartLon}
	target := geo.DestinationPoint(home, 50, 90)
	plan, err := mission.BuildPlan(&target, 10)
	require.NoError(t, err)
	require.NoError(t, v.ScheduleElements(plan))
	v.StartTimeline()

	assert.ErrorIs(t, v.ScheduleElements(plan), ErrTimelineRunning)

	for i := 0; i < 1000 && !log.finishedAll(); i++ {
		v.step(tickRate)
	}
	require.True(t, log.finishedAll(), "timeline did not finish")

	var finished []mission.Kind
	started := 0
	for _, ev := range log.all() {
		require.NoError(t, ev.Err)
		switch {
		case ev.Kind == mission.EventStarted && ev.Element != nil:
			started++
		case ev.Kind == mission.EventFinished && ev.Element != nil:
			finished = append(finished, ev.Element.Kind())
		}
	}
	assert.Equal(t, 5, started)
	assert.Equal(t, plan.Kinds(), finished)

	assert.Equal(t, 1, v.Photos())
	assert.Equal(t, mission.Attitude{}, v.Gimbal())

	st := v.controllerState()
	assert.False(t, st.IsFlying)
	assert.False(t, st.MotorsOn)
	assert.InDelta(t, 0, geo.Distance(home, *st.Position), 1.0)
}

func TestTimelineStop(t *testing.T) {
	v := newVehicle(DefaultConfig())
	log := &eventLog{}
	v.AddListener(log.add)

	v.StartTimeline()
	evs := log.all()
	require.Len(t, evs, 1)
	assert.Equal(t, mission.EventStartError, evs[0].Kind)
	assert.ErrorIs(t, evs[0].Err, ErrEmptyTimeline)

	target := geo.Point{Lat: 47.38, Lon: 8.55}
	plan, err := mission.BuildPlan(&target, 30)
	require.NoError(t, err)
	require.NoError(t, v.ScheduleElements(plan))
	v.StartTimeline()
	v.StopTimeline()

	evs = log.all()
	assert.Equal(t, mission.EventStopped, evs[len(evs)-1].Kind)

	v.RemoveAllListeners()
	v.StopTimeline()
	assert.Len(t, log.all(), len(evs))
}

func TestScheduleRejectsInvalidPlan(t *testing.T) {
	v := newVehicle(DefaultConfig())
	err := v.ScheduleElements(mission.Plan{mission.GimbalAttitude(-120, 0, 0)})
	assert.ErrorIs(t, err, mission.ErrInvalidAttitude)
}

func TestLinkLifecycle(t *testing.T) {
	v := newVehicle(DefaultConfig())
	ctx := context.Background()

	assert.Equal(t, vehicle.StateDisconnected, v.State())
	_, err := v.Connect(ctx)
	assert.ErrorIs(t, err, vehicle.ErrNotRegistered)
	assert.ErrorIs(t, v.Register(ctx, ""), vehicle.ErrNoAppKey)
	assert.ErrorIs(t, v.SetPhotoAspectRatio(ctx, vehicle.AspectRatio16x9), vehicle.ErrNotConnected)

	require.NoError(t, v.Register(ctx, "sim-key"))
	p, err := v.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Matrice600", p.Model)
	assert.Equal(t, vehicle.StateConnected, v.State())

	require.NoError(t, v.SetPhotoAspectRatio(ctx, vehicle.AspectRatio16x9))
	assert.Equal(t, vehicle.AspectRatio16x9, v.PhotoAspectRatio())
}

func TestTelemetryAndFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartHeading = 180
	v := newVehicle(cfg)

	var states []telemetry.ControllerState
	unsub := v.Subscribe(func(s telemetry.ControllerState) { states = append(states, s) })

	var frames [][]byte
	unsubFrames := v.SubscribeFrames(video.ChannelSecondary, func(f []byte) { frames = append(frames, f) })

	v.step(tickRate)
	require.Len(t, states, 1)
	assert.Equal(t, 180.0, states[0].YawDegrees)
	require.NotNil(t, states[0].Position)
	require.Len(t, frames, 1)
	assert.Contains(t, string(frames[0]), "secondary seq=1")

	unsub()
	unsubFrames()
	v.step(tickRate)
	assert.Len(t, states, 1)
	assert.Len(t, frames, 1)
}

func TestTelemetryRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TelemetryRate = 500 * time.Millisecond
	v := newVehicle(cfg)

	n := 0
	v.Subscribe(func(telemetry.ControllerState) { n++ })
	for i := 0; i < 10; i++ {
		v.step(tickRate)
	}
	assert.Equal(t, 2, n)
}

func TestNewAndClose(t *testing.T) {
	v := New(DefaultConfig())
	ticks := make(chan struct{}, 1)
	v.Subscribe(func(telemetry.ControllerState) {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})
	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("physics loop produced no telemetry")
	}
	assert.NoError(t, v.Close())
	assert.NoError(t, v.Close())
}
