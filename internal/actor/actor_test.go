package actor_test

import (
	"context"
	"testing"
	"time"

	"github.com/bhandras/workout/internal/actor"
	"github.com/bhandras/workout/internal/actor/actortest"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	actor.InputBase
	n int
}

type testEffect struct {
	actor.EffectBase
	n int
}

type echoEvent struct {
	actor.InputBase
}

func sumReducer(state int, input actor.Input) (int, []actor.Effect) {
	switch ev := input.(type) {
	case testEvent:
		return state + ev.n, []actor.Effect{testEffect{n: ev.n}}
	case echoEvent:
		return state + 100, nil
	default:
		return state, nil
	}
}

func TestActorProcessesInputsSequentially(t *testing.T) {
	t.Parallel()

	rt := &actortest.FakeRuntime{}
	a := actor.New[int](0, sumReducer, rt)
	a.Start()
	defer a.Stop()

	for i := 1; i <= 5; i++ {
		require.True(t, a.Enqueue(testEvent{n: i}), "enqueue %d", i)
	}

	require.Eventually(t, func() bool { return a.State() == 15 }, 2*time.Second, 5*time.Millisecond)
	require.Len(t, rt.Effects(), 5)
}

func TestActorRuntimeEmitsBackIntoMailbox(t *testing.T) {
	t.Parallel()

	rt := &actortest.FakeRuntime{
		EmitFn: func(_ context.Context, eff actor.Effect, emit func(actor.Input)) {
			if _, ok := eff.(testEffect); ok {
				emit(echoEvent{})
			}
		},
	}
	a := actor.New[int](0, sumReducer, rt)
	a.Start()
	defer a.Stop()

	require.True(t, a.Enqueue(testEvent{n: 1}))
	require.Eventually(t, func() bool { return a.State() == 101 }, 2*time.Second, 5*time.Millisecond)
}

func TestActorEnqueueAfterStop(t *testing.T) {
	t.Parallel()

	rt := &actortest.FakeRuntime{}
	a := actor.New[int](0, sumReducer, rt)
	a.Start()
	a.Stop()
	a.Stop()

	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("actor loop did not exit")
	}
	require.False(t, a.Enqueue(testEvent{n: 1}))
	require.Equal(t, 2, rt.Stops())
}

func TestActorDropsWhenMailboxFull(t *testing.T) {
	t.Parallel()

	var dropped int
	a := actor.New[int](0, sumReducer, nil,
		actor.WithMailboxSize[int](1),
		actor.WithHooks(actor.Hooks[int]{
			OnDrop: func(actor.Input) { dropped++ },
		}),
	)
	// Not started: the first input fills the mailbox.
	require.True(t, a.Enqueue(testEvent{n: 1}))
	require.False(t, a.Enqueue(testEvent{n: 2}))
	require.Equal(t, 1, dropped)
	a.Stop()
}

func TestReplayCollectsEffects(t *testing.T) {
	t.Parallel()

	state, effects := actor.Replay(0, sumReducer, testEvent{n: 2}, echoEvent{}, testEvent{n: 3})
	require.Equal(t, 105, state)
	require.Len(t, effects, 2)
}

func TestFakeClockFiresInDeadlineOrder(t *testing.T) {
	t.Parallel()

	start := time.Unix(1_700_000_000, 0)
	clock := actortest.NewFakeClock(start)

	var fired []string
	clock.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	clock.AfterFunc(1*time.Second, func() {
		fired = append(fired, "a")
		clock.AfterFunc(500*time.Millisecond, func() { fired = append(fired, "a2") })
	})
	stopped := clock.AfterFunc(1500*time.Millisecond, func() { fired = append(fired, "x") })
	require.True(t, stopped.Stop())
	require.False(t, stopped.Stop())

	clock.Set(start.Add(10 * time.Second))
	require.Empty(t, fired)
	require.Equal(t, 2, clock.Pending())

	clock.Set(start)
	clock.Advance(3 * time.Second)
	require.Equal(t, []string{"a", "a2", "b"}, fired)
	require.Equal(t, start.Add(3*time.Second), clock.Now())
	require.Zero(t, clock.Pending())
}
