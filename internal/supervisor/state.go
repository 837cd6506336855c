package supervisor

import (
	"encoding/json"
	"time"

	"github.com/bhandras/workout/internal/store"
	"github.com/bhandras/workout/internal/timing"
)

// Named timers owned by the supervisor runtime.
const (
	timerCheckpoint    = "checkpoint"
	timerLiveness      = "liveness"
	timerResync        = "resync"
	timerResyncTimeout = "resync-timeout"
)

// Params are the supervisor's timing knobs in milliseconds.
type Params struct {
	CheckpointMs     int64
	ResyncTimeoutMs  int64
	LivenessMs       int64
	ResyncIntervalMs int64
}

// State is the loop-owned state of the supervisor.
type State struct {
	OwnerID string
	Params  Params

	// Timer mirrors the authority's timing state as learned from its events.
	// It is used for checkpoints and for the degraded wall-clock projection.
	Timer timing.State

	// ElapsedSeconds is the cached projection.
	ElapsedSeconds int64
	Degraded       bool
	ResyncPending  bool

	// StopsInFlight counts STOP commands the authority has not confirmed.
	// The session already ended locally when each was sent, so lifecycle
	// events arriving before the confirmation are stale.
	StopsInFlight int

	Payload json.RawMessage
}

// NewState returns an idle supervisor state.
func NewState(ownerID string, params Params) State {
	return State{OwnerID: ownerID, Params: params, Timer: timing.NewState()}
}

// Active reports whether a session is running or paused.
func (s State) Active() bool {
	return s.Timer.Status != timing.StatusIdle
}

// Projection returns the cached projection.
func (s State) Projection() Projection {
	return Projection{
		ElapsedSeconds: s.ElapsedSeconds,
		IsRunning:      s.Timer.Running(),
		Status:         s.Timer.Status,
		Degraded:       s.Degraded,
	}
}

// wallClockSeconds projects elapsed time from the anchor, never below the
// cached value.
func (s State) wallClockSeconds(nowMs int64) int64 {
	return max(s.ElapsedSeconds, s.Timer.ElapsedSeconds(nowMs))
}

func (s State) timerCheckpoint(nowMs int64) store.TimerCheckpoint {
	c := store.TimerCheckpoint{
		OwnerID:             s.OwnerID,
		AnchorEpochMs:       s.Timer.AnchorEpochMs,
		IsRunning:           s.Timer.Running(),
		PausedAccumulatedMs: s.Timer.PausedAccumulatedMs,
		CheckpointEpochMs:   nowMs,
	}
	if s.Timer.Status == timing.StatusPaused {
		c.PausedAtEpochMs = s.Timer.PauseStartedAtMs
	}
	return c
}

func (s State) sessionCheckpoint(nowMs int64) store.SessionCheckpoint {
	return store.SessionCheckpoint{
		OwnerID:           s.OwnerID,
		Active:            s.Active(),
		Payload:           s.Payload,
		ElapsedSeconds:    s.wallClockSeconds(nowMs),
		StartedAtISO:      time.UnixMilli(s.Timer.AnchorEpochMs).UTC().Format(time.RFC3339),
		CheckpointEpochMs: nowMs,
	}
}
