package wire

import "fmt"

// EventType discriminates events emitted by the timing authority.
type EventType string

const (
	EvStarted    EventType = "STARTED"
	EvPaused     EventType = "PAUSED"
	EvResumed    EventType = "RESUMED"
	EvStopped    EventType = "STOPPED"
	EvTick       EventType = "TICK"
	EvTimeUpdate EventType = "TIME_UPDATE"
	EvRestored   EventType = "RESTORED"
)

// Event is a message from the timing authority.
type Event struct {
	Type EventType

	// AnchorEpochMs is set for STARTED and RESTORED.
	AnchorEpochMs int64
	// ElapsedSeconds is set for TICK, TIME_UPDATE, PAUSED and RESTORED.
	ElapsedSeconds int64
	// IsRunning is set for TIME_UPDATE and RESTORED.
	IsRunning bool
	// PausedAccumulatedMs is set for RESUMED and RESTORED.
	PausedAccumulatedMs int64
	// PausedAtEpochMs is set for PAUSED, and for RESTORED when paused.
	PausedAtEpochMs int64
}

// Started returns a STARTED event.
func Started(anchorEpochMs int64) Event {
	return Event{Type: EvStarted, AnchorEpochMs: anchorEpochMs}
}

// Paused returns a PAUSED event carrying the frozen elapsed value.
func Paused(elapsedSeconds, pausedAtEpochMs int64) Event {
	return Event{Type: EvPaused, ElapsedSeconds: elapsedSeconds, PausedAtEpochMs: pausedAtEpochMs}
}

// Resumed returns a RESUMED event.
func Resumed(pausedAccumulatedMs int64) Event {
	return Event{Type: EvResumed, PausedAccumulatedMs: pausedAccumulatedMs}
}

// Stopped returns a STOPPED event.
func Stopped() Event { return Event{Type: EvStopped} }

// Tick returns a TICK event.
func Tick(elapsedSeconds int64) Event {
	return Event{Type: EvTick, ElapsedSeconds: elapsedSeconds}
}

// TimeUpdate returns a TIME_UPDATE event.
func TimeUpdate(elapsedSeconds int64, isRunning bool) Event {
	return Event{Type: EvTimeUpdate, ElapsedSeconds: elapsedSeconds, IsRunning: isRunning}
}

// Restored returns a RESTORED event.
func Restored(anchorEpochMs, pausedAccumulatedMs, pausedAtEpochMs, elapsedSeconds int64, isRunning bool) Event {
	return Event{
		Type:                EvRestored,
		AnchorEpochMs:       anchorEpochMs,
		PausedAccumulatedMs: pausedAccumulatedMs,
		PausedAtEpochMs:     pausedAtEpochMs,
		ElapsedSeconds:      elapsedSeconds,
		IsRunning:           isRunning,
	}
}

func (e Event) known() bool {
	switch e.Type {
	case EvStarted, EvPaused, EvResumed, EvStopped, EvTick, EvTimeUpdate, EvRestored:
		return true
	default:
		return false
	}
}

func (e Event) String() string {
	switch e.Type {
	case EvStarted:
		return fmt.Sprintf("%s(anchor=%d)", e.Type, e.AnchorEpochMs)
	case EvTick:
		return fmt.Sprintf("%s(%ds)", e.Type, e.ElapsedSeconds)
	case EvTimeUpdate:
		return fmt.Sprintf("%s(%ds running=%t)", e.Type, e.ElapsedSeconds, e.IsRunning)
	case EvPaused:
		return fmt.Sprintf("%s(%ds)", e.Type, e.ElapsedSeconds)
	case EvRestored:
		return fmt.Sprintf("%s(%ds running=%t)", e.Type, e.ElapsedSeconds, e.IsRunning)
	default:
		return string(e.Type)
	}
}
