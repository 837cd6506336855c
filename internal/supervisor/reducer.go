package supervisor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bhandras/workout/internal/actor"
	"github.com/bhandras/workout/internal/timing"
	"github.com/bhandras/workout/internal/wire"
	"github.com/bhandras/workout/pkg/logger"
)

// Reduce is the supervisor state transition function.
//
// Most intents only translate into authority commands and the cached
// projection changes when the authority's events come back. Stop and Finish
// are the exception: they end the session locally at once, so a lost
// authority can neither keep a session alive nor leave its checkpoint behind.
func Reduce(state State, input actor.Input) (State, []actor.Effect) {
	switch in := input.(type) {
	case cmdStart:
		if state.Active() {
			return state, nil
		}
		return state, []actor.Effect{effSend{Cmd: wire.Start(in.NowMs)}}
	case cmdPause:
		if !state.Timer.Running() {
			return state, nil
		}
		return state, []actor.Effect{effSend{Cmd: wire.Pause()}}
	case cmdResume:
		if state.Timer.Running() || state.Timer.AnchorEpochMs == 0 {
			return state, nil
		}
		return state, []actor.Effect{effSend{Cmd: wire.Resume()}}
	case cmdStop:
		return reduceStop(state)
	case cmdFlush:
		return state, append(persist(state, in.NowMs), effFlushDone{Done: in.Done})
	case cmdSetPayload:
		return reduceSetPayload(state, in)
	case cmdResync:
		return requestTime(state)
	case cmdRestore:
		return reduceRestore(state, in)
	case cmdFinish:
		return reduceFinish(state, in)
	case evAuthority:
		return reduceAuthorityEvent(state, in)
	case evTimerFired:
		return reduceTimerFired(state, in)
	case evSendFailed:
		if in.Cmd.Type == wire.CmdStop && state.StopsInFlight > 0 {
			state.StopsInFlight--
		}
		return state, nil
	default:
		return state, nil
	}
}

func reduceStop(state State) (State, []actor.Effect) {
	state = resetSession(state)
	state.StopsInFlight++
	effects := cancelAllTimers()
	effects = append(effects,
		effClear{},
		effPublish{Projection: state.Projection()},
		effSend{Cmd: wire.Stop()},
	)
	return state, effects
}

func reduceSetPayload(state State, cmd cmdSetPayload) (State, []actor.Effect) {
	if !state.Active() {
		return state, nil
	}
	state.Payload = nil
	if len(cmd.Payload) > 0 {
		state.Payload = append(json.RawMessage(nil), cmd.Payload...)
	}
	if state.OwnerID == "" {
		return state, nil
	}
	return state, []actor.Effect{effSaveSession{Checkpoint: state.sessionCheckpoint(cmd.NowMs)}}
}

func reduceRestore(state State, cmd cmdRestore) (State, []actor.Effect) {
	if state.Active() {
		return state, nil
	}
	cp := cmd.Snapshot.Timer
	state.Timer = timing.State{
		Status:              timing.StatusRunning,
		AnchorEpochMs:       cp.AnchorEpochMs,
		PausedAccumulatedMs: cp.PausedAccumulatedMs,
	}
	if !cp.IsRunning {
		state.Timer.Status = timing.StatusPaused
		state.Timer.PauseStartedAtMs = cp.PausedAtEpochMs
	}
	state.ElapsedSeconds = state.Timer.ElapsedSeconds(cmd.NowMs)
	state.Payload = cmd.Snapshot.Payload()

	return state, []actor.Effect{
		effSend{Cmd: wire.Restore(cp.AnchorEpochMs, cp.PausedAccumulatedMs, state.Timer.PauseStartedAtMs)},
		effPublish{Projection: state.Projection()},
	}
}

func reduceFinish(state State, cmd cmdFinish) (State, []actor.Effect) {
	if !state.Active() {
		return state, []actor.Effect{effFinishReply{Reply: cmd.Reply}}
	}

	summary := Summary{
		OwnerID:        state.OwnerID,
		ElapsedSeconds: state.wallClockSeconds(cmd.NowMs),
		StartedAt:      time.UnixMilli(state.Timer.AnchorEpochMs).UTC(),
		FinishedAt:     time.UnixMilli(cmd.NowMs).UTC(),
		Payload:        state.Payload,
	}

	// The session ends here so a second Finish finds nothing to submit, even
	// before STOPPED comes back.
	state = resetSession(state)
	state.StopsInFlight++
	effects := []actor.Effect{effSend{Cmd: wire.Stop()}}
	effects = append(effects, cancelAllTimers()...)
	effects = append(effects,
		effClear{},
		effPublish{Projection: state.Projection()},
		effFinishReply{Reply: cmd.Reply, Result: finishReply{Active: true, Summary: summary}},
	)
	return state, effects
}

func reduceAuthorityEvent(state State, in evAuthority) (State, []actor.Effect) {
	ev := in.Event
	wasDegraded := state.Degraded
	state.Degraded = false

	var effects []actor.Effect
	if wasDegraded {
		effects = append(effects, effLog{
			Level:   logger.LevelInfo,
			Message: fmt.Sprintf("authority responsive again (%s)", ev.Type),
		})
	}

	if state.StopsInFlight > 0 {
		if ev.Type == wire.EvStopped {
			state.StopsInFlight--
		}
		return state, effects
	}

	switch ev.Type {
	case wire.EvStarted:
		state.Timer = timing.State{Status: timing.StatusRunning, AnchorEpochMs: ev.AnchorEpochMs}
		state.ElapsedSeconds = 0
		effects = append(effects, persist(state, in.NowMs)...)
		effects = append(effects, armRunningTimers(state)...)

	case wire.EvPaused:
		state.Timer.Status = timing.StatusPaused
		state.Timer.PauseStartedAtMs = ev.PausedAtEpochMs
		state.ElapsedSeconds = ev.ElapsedSeconds
		effects = append(effects, persist(state, in.NowMs)...)
		effects = append(effects, cancelRunningTimers()...)

	case wire.EvResumed:
		state.Timer.Status = timing.StatusRunning
		state.Timer.PausedAccumulatedMs = ev.PausedAccumulatedMs
		state.Timer.PauseStartedAtMs = 0
		effects = append(effects, persist(state, in.NowMs)...)
		effects = append(effects, armRunningTimers(state)...)

	case wire.EvStopped:
		state = resetSession(state)
		effects = append(effects, cancelAllTimers()...)
		effects = append(effects, effClear{})

	case wire.EvTick:
		if !state.Timer.Running() {
			return state, effects
		}
		state.ElapsedSeconds = max(state.ElapsedSeconds, ev.ElapsedSeconds)
		effects = append(effects, restartTimer(timerLiveness, state.Params.LivenessMs)...)

	case wire.EvTimeUpdate:
		state.ResyncPending = false
		state.ElapsedSeconds = ev.ElapsedSeconds
		effects = append(effects, effCancelTimer{Name: timerResyncTimeout})
		if ev.IsRunning != state.Timer.Running() {
			effects = append(effects, effLog{Level: logger.LevelWarn, Message: fmt.Sprintf(
				"authority reports running=%t while supervisor is %s", ev.IsRunning, state.Timer.Status)})
		}
		if state.Timer.Running() {
			effects = append(effects, restartTimer(timerLiveness, state.Params.LivenessMs)...)
		}

	case wire.EvRestored:
		state.Timer = timing.State{
			Status:              timing.StatusRunning,
			AnchorEpochMs:       ev.AnchorEpochMs,
			PausedAccumulatedMs: ev.PausedAccumulatedMs,
		}
		if !ev.IsRunning {
			state.Timer.Status = timing.StatusPaused
			state.Timer.PauseStartedAtMs = ev.PausedAtEpochMs
		}
		state.ElapsedSeconds = ev.ElapsedSeconds
		effects = append(effects, persist(state, in.NowMs)...)
		if ev.IsRunning {
			effects = append(effects, armRunningTimers(state)...)
		}

	default:
		return state, effects
	}

	return state, append(effects, effPublish{Projection: state.Projection()})
}

func reduceTimerFired(state State, ev evTimerFired) (State, []actor.Effect) {
	switch ev.Name {
	case timerCheckpoint:
		if !state.Timer.Running() {
			return state, nil
		}
		// Both slots are refreshed so the payload stays within the TTL for
		// sessions that run long without a transition.
		effects := persist(state, ev.NowMs)
		return state, append(effects, restartTimer(timerCheckpoint, state.Params.CheckpointMs)...)

	case timerLiveness:
		if !state.Timer.Running() {
			return state, nil
		}
		state.ElapsedSeconds = state.wallClockSeconds(ev.NowMs)
		effects := []actor.Effect{}
		if !state.Degraded {
			effects = append(effects, effLog{Level: logger.LevelWarn, Message: fmt.Sprintf(
				"no tick from authority for %s; projecting from wall clock",
				time.Duration(state.Params.LivenessMs)*time.Millisecond)})
		}
		state.Degraded = true
		effects = append(effects, restartTimer(timerLiveness, state.Params.LivenessMs)...)
		return state, append(effects, effPublish{Projection: state.Projection()})

	case timerResyncTimeout:
		if !state.ResyncPending {
			return state, nil
		}
		state.ResyncPending = false
		return state, []actor.Effect{effLog{Level: logger.LevelWarn, Message: fmt.Sprintf(
			"GET_TIME unanswered after %s; keeping %ds",
			time.Duration(state.Params.ResyncTimeoutMs)*time.Millisecond, state.ElapsedSeconds)}}

	case timerResync:
		if !state.Timer.Running() {
			return state, nil
		}
		next, effects := requestTime(state)
		return next, append(effects, restartTimer(timerResync, state.Params.ResyncIntervalMs)...)

	default:
		return state, nil
	}
}

func requestTime(state State) (State, []actor.Effect) {
	state.ResyncPending = true
	effects := []actor.Effect{effSend{Cmd: wire.GetTime()}}
	return state, append(effects, restartTimer(timerResyncTimeout, state.Params.ResyncTimeoutMs)...)
}

// persist writes both checkpoint slots for an active session.
func persist(state State, nowMs int64) []actor.Effect {
	if state.OwnerID == "" || !state.Active() {
		return nil
	}
	return []actor.Effect{
		effSaveTimer{Checkpoint: state.timerCheckpoint(nowMs)},
		effSaveSession{Checkpoint: state.sessionCheckpoint(nowMs)},
	}
}

func resetSession(state State) State {
	state.Timer = timing.NewState()
	state.ElapsedSeconds = 0
	state.Degraded = false
	state.ResyncPending = false
	state.Payload = nil
	return state
}

func restartTimer(name string, afterMs int64) []actor.Effect {
	if afterMs <= 0 {
		return nil
	}
	return []actor.Effect{
		effCancelTimer{Name: name},
		effStartTimer{Name: name, AfterMs: afterMs},
	}
}

func armRunningTimers(state State) []actor.Effect {
	var effects []actor.Effect
	effects = append(effects, restartTimer(timerCheckpoint, state.Params.CheckpointMs)...)
	effects = append(effects, restartTimer(timerLiveness, state.Params.LivenessMs)...)
	effects = append(effects, restartTimer(timerResync, state.Params.ResyncIntervalMs)...)
	return effects
}

func cancelRunningTimers() []actor.Effect {
	return []actor.Effect{
		effCancelTimer{Name: timerCheckpoint},
		effCancelTimer{Name: timerLiveness},
		effCancelTimer{Name: timerResync},
	}
}

func cancelAllTimers() []actor.Effect {
	return append(cancelRunningTimers(), effCancelTimer{Name: timerResyncTimeout})
}
