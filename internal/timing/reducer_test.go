package timing

import (
	"math/rand"
	"testing"

	"github.com/bhandras/workout/internal/actor"
	"github.com/bhandras/workout/internal/wire"
	"github.com/stretchr/testify/require"
)

const t0 = int64(1_700_000_000_000)

func cmdAt(cmd wire.Command, nowMs int64) actor.Input {
	return cmdInput{Cmd: cmd, NowMs: nowMs}
}

func events(effects []actor.Effect) []wire.Event {
	var out []wire.Event
	for _, eff := range effects {
		if e, ok := eff.(effEmit); ok {
			out = append(out, e.Event)
		}
	}
	return out
}

func hasEffect[T actor.Effect](effects []actor.Effect) bool {
	for _, eff := range effects {
		if _, ok := eff.(T); ok {
			return true
		}
	}
	return false
}

func TestReduceStartEmitsStartedAndArmsTicker(t *testing.T) {
	t.Parallel()

	next, effects := Reduce(NewState(), cmdAt(wire.Start(t0), t0))
	require.Equal(t, StatusRunning, next.Status)
	require.Equal(t, t0, next.AnchorEpochMs)
	require.Equal(t, []wire.Event{wire.Started(t0)}, events(effects))
	require.True(t, hasEffect[effStartTicker](effects))
}

func TestReduceStartWhileStartedKeepsAnchor(t *testing.T) {
	t.Parallel()

	state, _ := Reduce(NewState(), cmdAt(wire.Start(t0), t0))
	next, effects := Reduce(state, cmdAt(wire.Start(t0+5_000), t0+5_000))
	require.Equal(t, t0, next.AnchorEpochMs)
	require.Empty(t, effects)

	paused, _ := Reduce(next, cmdAt(wire.Pause(), t0+6_000))
	again, effects := Reduce(paused, cmdAt(wire.Start(t0+7_000), t0+7_000))
	require.Equal(t, paused, again)
	require.Empty(t, effects)
}

func TestReduceResumeWithoutPauseIsNoop(t *testing.T) {
	t.Parallel()

	next, effects := Reduce(NewState(), cmdAt(wire.Resume(), t0))
	require.Equal(t, NewState(), next)
	require.Empty(t, effects)

	running, _ := Reduce(NewState(), cmdAt(wire.Start(t0), t0))
	next, effects = Reduce(running, cmdAt(wire.Resume(), t0+1_000))
	require.Equal(t, running, next)
	require.Empty(t, effects)
}

func TestReducePauseWhileNotRunningIsNoop(t *testing.T) {
	t.Parallel()

	next, effects := Reduce(NewState(), cmdAt(wire.Pause(), t0))
	require.Equal(t, NewState(), next)
	require.Empty(t, effects)
}

func TestReduceStopAlwaysEmitsStopped(t *testing.T) {
	t.Parallel()

	for _, state := range []State{
		NewState(),
		{Status: StatusRunning, AnchorEpochMs: t0},
		{Status: StatusPaused, AnchorEpochMs: t0, PauseStartedAtMs: t0 + 10, PausedAccumulatedMs: 3},
	} {
		next, effects := Reduce(state, cmdAt(wire.Stop(), t0+100))
		require.Equal(t, NewState(), next)
		require.Equal(t, []wire.Event{wire.Stopped()}, events(effects))
		require.True(t, hasEffect[effStopTicker](effects))
	}
}

func TestReduceTickOnlyWhileRunning(t *testing.T) {
	t.Parallel()

	_, effects := Reduce(NewState(), evTick{NowMs: t0})
	require.Empty(t, effects)

	state, _ := Reduce(NewState(), cmdAt(wire.Start(t0), t0))
	_, effects = Reduce(state, evTick{NowMs: t0 + 2_500})
	require.Equal(t, []wire.Event{wire.Tick(2)}, events(effects))

	paused, _ := Reduce(state, cmdAt(wire.Pause(), t0+3_000))
	_, effects = Reduce(paused, evTick{NowMs: t0 + 4_000})
	require.Empty(t, effects)
}

func TestReduceInvalidCommandIgnored(t *testing.T) {
	t.Parallel()

	next, effects := Reduce(NewState(), cmdAt(wire.Command{Type: wire.CmdStart}, t0))
	require.Equal(t, NewState(), next)
	require.Empty(t, effects)
}

// Start at T0, pause at T0+1000s for 200s, resume, read at T0+3600s.
func TestScenarioPauseResumeElapsed(t *testing.T) {
	t.Parallel()

	const s = int64(1000)
	state, effects := actor.Replay(NewState(), Reduce,
		cmdAt(wire.Start(t0), t0),
		cmdAt(wire.Pause(), t0+1000*s),
		cmdAt(wire.Resume(), t0+1200*s),
		cmdAt(wire.GetTime(), t0+3600*s),
	)
	evs := events(effects)
	require.Equal(t, wire.Paused(1000, t0+1000*s), evs[1])
	require.Equal(t, wire.Resumed(200*s), evs[2])
	require.Equal(t, wire.TimeUpdate(3400, true), evs[3])
	require.Equal(t, int64(3400), state.ElapsedSeconds(t0+3600*s))
}

// A five-minute gap with no ticks is answered from the anchor, not from a
// tick count.
func TestGetTimeAfterTickGapUsesAnchor(t *testing.T) {
	t.Parallel()

	state, _ := actor.Replay(NewState(), Reduce,
		cmdAt(wire.Start(t0), t0),
		evTick{NowMs: t0 + 1_000},
		evTick{NowMs: t0 + 2_000},
		cmdAt(wire.Pause(), t0+10_000),
		cmdAt(wire.Resume(), t0+15_000),
	)
	now := t0 + 15_000 + 5*60*1000
	_, effects := Reduce(state, cmdAt(wire.GetTime(), now))

	want := (now - state.AnchorEpochMs - state.PausedAccumulatedMs) / 1000
	require.Equal(t, []wire.Event{wire.TimeUpdate(want, true)}, events(effects))
	require.Equal(t, int64(310), want)
}

func TestElapsedMonotonicAcrossInterleavings(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		state, _ := Reduce(NewState(), cmdAt(wire.Start(t0), t0))
		now := t0
		last := int64(0)
		for step := 0; step < 40; step++ {
			now += rng.Int63n(120_000)

			var cmd wire.Command
			switch rng.Intn(4) {
			case 0:
				cmd = wire.Pause()
			case 1:
				cmd = wire.Resume()
			case 2:
				cmd = wire.Start(now)
			default:
				cmd = wire.GetTime()
			}

			before := state
			state, _ = Reduce(state, cmdAt(cmd, now))

			elapsed := state.ElapsedMs(now)
			require.GreaterOrEqual(t, elapsed, last, "trial %d step %d", trial, step)
			if before.Status == StatusPaused && state.Status == StatusPaused {
				require.Equal(t, last, elapsed, "paused value moved")
			}
			require.Equal(t, t0, state.AnchorEpochMs, "anchor moved")
			last = elapsed
		}
	}
}

func TestReduceRestore(t *testing.T) {
	t.Parallel()

	now := t0 + 7_199_000
	running, effects := Reduce(NewState(), cmdAt(wire.Restore(t0, 60_000, 0), now))
	require.Equal(t, StatusRunning, running.Status)
	require.Equal(t, []wire.Event{wire.Restored(t0, 60_000, 0, 7139, true)}, events(effects))
	require.True(t, hasEffect[effStartTicker](effects))

	paused, effects := Reduce(NewState(), cmdAt(wire.Restore(t0, 0, t0+30_000), now))
	require.Equal(t, StatusPaused, paused.Status)
	require.Equal(t, []wire.Event{wire.Restored(t0, 0, t0+30_000, 30, false)}, events(effects))
	require.False(t, hasEffect[effStartTicker](effects))

	resumed, _ := Reduce(paused, cmdAt(wire.Resume(), now))
	require.Equal(t, int64(30), resumed.ElapsedSeconds(now))

	same, effects := Reduce(running, cmdAt(wire.Restore(t0+1, 0, 0), now))
	require.Equal(t, running, same)
	require.Empty(t, effects)
}
