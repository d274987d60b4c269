package mission

// RunState is the orchestrator lifecycle state.
type RunState string

const (
	StateIdle             RunState = "idle"
	StateValidating       RunState = "validating"
	StatePreparingTakeoff RunState = "preparing_takeoff"
	StateTakingOff        RunState = "taking_off"
	StateExecuting        RunState = "executing"
	StateCompleted        RunState = "completed"
	StateFailed           RunState = "failed"
)

// Terminal reports whether the state ends an attempt.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Active reports whether an attempt is in progress.
func (s RunState) Active() bool {
	return s != StateIdle && !s.Terminal()
}
