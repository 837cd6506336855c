package timing

import (
	"github.com/bhandras/workout/internal/actor"
	"github.com/bhandras/workout/internal/wire"
)

// Reduce is the authority reducer.
//
// Every command is guarded against the current status, so out-of-order or
// duplicated commands degrade to no-ops instead of corrupting the anchor.
func Reduce(state State, input actor.Input) (State, []actor.Effect) {
	switch in := input.(type) {
	case cmdInput:
		if in.Cmd.Validate() != nil {
			return state, nil
		}
		return reduceCommand(state, in.Cmd, in.NowMs)
	case evTick:
		if !state.Running() {
			return state, nil
		}
		return state, emit(wire.Tick(state.ElapsedSeconds(in.NowMs)))
	default:
		return state, nil
	}
}

func reduceCommand(state State, cmd wire.Command, nowMs int64) (State, []actor.Effect) {
	switch cmd.Type {
	case wire.CmdStart:
		if state.Status != StatusIdle {
			return state, nil
		}
		state = State{Status: StatusRunning, AnchorEpochMs: cmd.AnchorEpochMs}
		return state, []actor.Effect{
			effEmit{Event: wire.Started(state.AnchorEpochMs)},
			effStartTicker{},
		}

	case wire.CmdPause:
		if state.Status != StatusRunning {
			return state, nil
		}
		state.Status = StatusPaused
		state.PauseStartedAtMs = max(nowMs, state.AnchorEpochMs+state.PausedAccumulatedMs)
		return state, []actor.Effect{
			effStopTicker{},
			effEmit{Event: wire.Paused(state.ElapsedSeconds(nowMs), state.PauseStartedAtMs)},
		}

	case wire.CmdResume:
		if state.Status != StatusPaused {
			return state, nil
		}
		if gap := nowMs - state.PauseStartedAtMs; gap > 0 {
			state.PausedAccumulatedMs += gap
		}
		state.PauseStartedAtMs = 0
		state.Status = StatusRunning
		return state, []actor.Effect{
			effEmit{Event: wire.Resumed(state.PausedAccumulatedMs)},
			effStartTicker{},
		}

	case wire.CmdStop:
		return NewState(), []actor.Effect{
			effStopTicker{},
			effEmit{Event: wire.Stopped()},
		}

	case wire.CmdGetTime:
		return state, emit(wire.TimeUpdate(state.ElapsedSeconds(nowMs), state.Running()))

	case wire.CmdRestore:
		return reduceRestore(state, cmd, nowMs)

	default:
		return state, nil
	}
}

func reduceRestore(state State, cmd wire.Command, nowMs int64) (State, []actor.Effect) {
	if state.Status != StatusIdle {
		return state, nil
	}
	state = State{
		Status:              StatusRunning,
		AnchorEpochMs:       cmd.AnchorEpochMs,
		PausedAccumulatedMs: cmd.PausedAccumulatedMs,
	}
	if cmd.PausedAtEpochMs != 0 {
		state.Status = StatusPaused
		state.PauseStartedAtMs = cmd.PausedAtEpochMs
	}

	restored := wire.Restored(
		state.AnchorEpochMs,
		state.PausedAccumulatedMs,
		state.PauseStartedAtMs,
		state.ElapsedSeconds(nowMs),
		state.Running(),
	)
	if !state.Running() {
		return state, emit(restored)
	}
	return state, []actor.Effect{effEmit{Event: restored}, effStartTicker{}}
}

func emit(ev wire.Event) []actor.Effect {
	return []actor.Effect{effEmit{Event: ev}}
}
