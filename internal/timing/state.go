package timing

// Status is the timer lifecycle state.
type Status string

const (
	// StatusIdle means no session is being timed.
	StatusIdle Status = "idle"
	// StatusRunning means elapsed time is advancing.
	StatusRunning Status = "running"
	// StatusPaused means elapsed time is frozen.
	StatusPaused Status = "paused"
)

// State is the loop-owned state of the authority.
type State struct {
	Status Status

	// AnchorEpochMs is the wall-clock start of the session. It never changes
	// between START and STOP.
	AnchorEpochMs int64

	// PausedAccumulatedMs is the total time spent in completed pauses.
	PausedAccumulatedMs int64

	// PauseStartedAtMs is set while paused.
	PauseStartedAtMs int64
}

// NewState returns the idle state.
func NewState() State {
	return State{Status: StatusIdle}
}

// ElapsedMs returns the elapsed session time at nowMs.
//
// While paused the value is frozen at the pause instant. A wall clock that
// moved backwards never yields a negative value.
func (s State) ElapsedMs(nowMs int64) int64 {
	var elapsed int64
	switch s.Status {
	case StatusRunning:
		elapsed = nowMs - s.AnchorEpochMs - s.PausedAccumulatedMs
	case StatusPaused:
		elapsed = s.PauseStartedAtMs - s.AnchorEpochMs - s.PausedAccumulatedMs
	default:
		return 0
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// ElapsedSeconds returns ElapsedMs truncated to whole seconds.
func (s State) ElapsedSeconds(nowMs int64) int64 {
	return s.ElapsedMs(nowMs) / 1000
}

// Running reports whether time is advancing.
func (s State) Running() bool { return s.Status == StatusRunning }
