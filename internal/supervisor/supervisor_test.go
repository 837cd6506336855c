package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bhandras/workout/internal/actor/actortest"
	"github.com/bhandras/workout/internal/store"
	"github.com/bhandras/workout/internal/timing"
	"github.com/bhandras/workout/internal/wire"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type harness struct {
	clock     *actortest.FakeClock
	backend   *store.MemoryBackend
	store     *store.Store
	authority *timing.Authority
	sup       *Supervisor
}

func newHarness(t *testing.T, submitter Submitter) *harness {
	t.Helper()

	h := &harness{
		clock:   actortest.NewFakeClock(time.UnixMilli(t0)),
		backend: store.NewMemoryBackend(),
	}
	h.store = store.New(h.backend, store.WithClock(h.clock))
	h.authority = timing.New(timing.Config{Clock: h.clock})
	h.authority.Start()
	t.Cleanup(h.authority.Stop)

	h.sup = New(Config{
		OwnerID:    owner,
		Authority:  h.authority,
		Repository: h.store,
		Submitter:  submitter,
		Clock:      h.clock,
	})
	t.Cleanup(h.sup.Close)
	return h
}

func (h *harness) waitStatus(t *testing.T, status timing.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.sup.Snapshot().Status == status
	}, waitFor, tick)
}

// waitPending waits until n timers are armed on the fake clock.
func (h *harness) waitPending(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.clock.Pending() == n
	}, waitFor, tick)
}

// Authority ticker plus the supervisor's checkpoint and liveness timers;
// periodic resync is disabled in these tests.
const runningTimers = 3

func TestStartThenStopLeavesNoSnapshot(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.sup.Open()

	h.sup.Start()
	h.waitStatus(t, timing.StatusRunning)
	require.Eventually(t, func() bool { return h.backend.Len() == 2 }, waitFor, tick)

	h.sup.Stop()
	h.waitStatus(t, timing.StatusIdle)
	require.Eventually(t, func() bool { return h.backend.Len() == 0 }, waitFor, tick)
	require.Zero(t, h.sup.Snapshot().ElapsedSeconds)

	_, ok := h.store.Load(owner)
	require.False(t, ok)
}

func TestStopThenUnloadLeavesNoSnapshot(t *testing.T) {
	t.Parallel()

	for i := 0; i < 20; i++ {
		h := newHarness(t, nil)
		h.sup.Open()
		h.sup.Start()
		h.waitStatus(t, timing.StatusRunning)
		require.Eventually(t, func() bool { return h.backend.Len() == 2 }, waitFor, tick)

		// The shell's quit path: stop, flush on unload, close.
		h.sup.Stop()
		h.sup.Flush()
		h.sup.Close()
		<-h.sup.Done()

		_, ok := h.store.Load(owner)
		require.False(t, ok, "run %d", i)
		require.Zero(t, h.backend.Len(), "run %d", i)
	}
}

func TestStopRightAfterStartLeavesNoSnapshot(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.sup.Open()
	h.sup.Start()
	h.sup.Stop()
	h.sup.Flush()

	require.Eventually(t, func() bool {
		return h.sup.loop.State().StopsInFlight == 0
	}, waitFor, tick)
	require.Equal(t, timing.StatusIdle, h.sup.Snapshot().Status)
	require.Zero(t, h.backend.Len())
	require.Eventually(t, func() bool {
		return h.authority.State().Status == timing.StatusIdle
	}, waitFor, tick)
}

func TestStopWithoutAuthority(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.sup.Open()
	h.sup.Start()
	h.waitStatus(t, timing.StatusRunning)
	h.waitPending(t, runningTimers)

	h.authority.Stop()
	<-h.authority.Done()

	h.sup.Stop()
	h.waitStatus(t, timing.StatusIdle)
	require.Eventually(t, func() bool {
		return h.sup.loop.State().StopsInFlight == 0
	}, waitFor, tick)
	require.Zero(t, h.backend.Len())

	h.clock.Advance(10 * time.Second)
	snap := h.sup.Snapshot()
	require.False(t, snap.Degraded)
	require.False(t, snap.IsRunning)
	require.Zero(t, snap.ElapsedSeconds)
	_, ok := h.store.Load(owner)
	require.False(t, ok)
}

func TestTicksAndCheckpoints(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.sup.Open()
	h.sup.Start()
	h.waitStatus(t, timing.StatusRunning)
	h.waitPending(t, runningTimers)

	for i := 1; i <= 10; i++ {
		h.clock.Advance(time.Second)
		want := int64(i)
		require.Eventually(t, func() bool {
			return h.sup.Snapshot().ElapsedSeconds == want
		}, waitFor, tick)
		// Wait for the liveness timer to be re-armed by the tick.
		h.waitPending(t, runningTimers)
	}

	snap, ok := h.store.Load(owner)
	require.True(t, ok)
	require.Equal(t, t0+10_000, snap.Timer.CheckpointEpochMs)
	require.False(t, h.sup.Snapshot().Degraded)
}

func TestStartIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.sup.Open()
	h.sup.Start()
	h.waitStatus(t, timing.StatusRunning)
	h.waitPending(t, runningTimers)

	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool { return h.sup.Snapshot().ElapsedSeconds == 1 }, waitFor, tick)

	h.sup.Start()
	h.sup.Resync()
	require.Eventually(t, func() bool { return !h.sup.loop.State().ResyncPending }, waitFor, tick)
	require.Equal(t, t0, h.authority.State().AnchorEpochMs)
	require.Equal(t, int64(1), h.sup.Snapshot().ElapsedSeconds)
}

// A session checkpointed at T is recovered at T+7199s with elapsed time
// recomputed from its anchor.
func TestRestoreWithinTTL(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	anchor := t0 - 600_000
	h.store.SaveTimer(store.TimerCheckpoint{
		OwnerID:           owner,
		AnchorEpochMs:     anchor,
		IsRunning:         true,
		CheckpointEpochMs: t0,
	})
	h.store.SaveSession(store.SessionCheckpoint{
		OwnerID:           owner,
		Active:            true,
		Payload:           json.RawMessage(`{"sets":2}`),
		CheckpointEpochMs: t0,
	})
	now := time.UnixMilli(t0).Add(7199 * time.Second)
	h.clock.Set(now)

	require.True(t, h.sup.Restore())
	h.sup.Open()

	h.waitStatus(t, timing.StatusRunning)
	require.Eventually(t, func() bool {
		return h.authority.State().AnchorEpochMs == anchor
	}, waitFor, tick)
	require.Equal(t, int64(7_799), h.sup.Snapshot().ElapsedSeconds)

	// RESTORED refreshes the checkpoint so the TTL window restarts.
	require.Eventually(t, func() bool {
		snap, ok := h.store.Load(owner)
		return ok && snap.Timer.CheckpointEpochMs == now.UnixMilli()
	}, waitFor, tick)
	snap, _ := h.store.Load(owner)
	require.JSONEq(t, `{"sets":2}`, string(snap.Payload()))
}

func TestRestoreBeyondTTLStartsFresh(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.store.SaveTimer(store.TimerCheckpoint{
		OwnerID:           owner,
		AnchorEpochMs:     t0 - 600_000,
		IsRunning:         true,
		CheckpointEpochMs: t0,
	})
	h.clock.Set(time.UnixMilli(t0).Add(store.DefaultTTL + time.Second))

	require.False(t, h.sup.Restore())
	require.Zero(t, h.backend.Len())
	require.Equal(t, timing.StatusIdle, h.sup.Snapshot().Status)
}

func TestRestoreForeignOwner(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.store.SaveTimer(store.TimerCheckpoint{
		OwnerID:           "bob",
		AnchorEpochMs:     t0 - 600_000,
		IsRunning:         true,
		CheckpointEpochMs: t0,
	})

	require.False(t, h.sup.Restore())
	require.Zero(t, h.backend.Len())
}

func TestPauseFreezesAndPersists(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.sup.Open()
	h.sup.Start()
	h.waitStatus(t, timing.StatusRunning)
	h.waitPending(t, runningTimers)

	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool { return h.sup.Snapshot().ElapsedSeconds == 1 }, waitFor, tick)

	h.clock.Set(h.clock.Now().Add(500 * time.Millisecond))
	h.sup.Pause()
	h.waitStatus(t, timing.StatusPaused)
	require.Equal(t, int64(1), h.sup.Snapshot().ElapsedSeconds)

	require.Eventually(t, func() bool {
		snap, ok := h.store.Load(owner)
		return ok && !snap.Timer.IsRunning
	}, waitFor, tick)
	snap, _ := h.store.Load(owner)
	require.Equal(t, t0+1_500, snap.Timer.PausedAtEpochMs)

	// Paused time is excluded after resume.
	h.clock.Set(h.clock.Now().Add(time.Minute))
	h.sup.Resume()
	h.waitStatus(t, timing.StatusRunning)
	h.waitPending(t, runningTimers)
	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool { return h.sup.Snapshot().ElapsedSeconds == 2 }, waitFor, tick)
}

func TestFlushWritesSynchronously(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.sup.Open()

	h.sup.Flush()
	require.Zero(t, h.backend.Len())

	h.sup.Start()
	h.waitStatus(t, timing.StatusRunning)
	h.waitPending(t, runningTimers)
	require.NoError(t, h.sup.SetPayload(json.RawMessage(`{"note":"pr"}`)))
	require.Eventually(t, func() bool {
		snap, ok := h.store.Load(owner)
		return ok && snap.Payload() != nil
	}, waitFor, tick)

	h.clock.Set(h.clock.Now().Add(5 * time.Second))
	h.sup.Flush()
	snap, ok := h.store.Load(owner)
	require.True(t, ok)
	require.Equal(t, t0+5_000, snap.Timer.CheckpointEpochMs)
	require.JSONEq(t, `{"note":"pr"}`, string(snap.Payload()))
}

func TestSetPayloadRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	require.ErrorIs(t, h.sup.SetPayload(json.RawMessage(`{oops`)), ErrInvalidPayload)
}

type recordingSubmitter struct {
	mu        sync.Mutex
	summaries []Summary
	err       error
}

func (r *recordingSubmitter) Submit(_ context.Context, s Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, s)
	return r.err
}

func TestFinishSubmitsOnce(t *testing.T) {
	t.Parallel()

	sub := &recordingSubmitter{}
	h := newHarness(t, sub)
	h.sup.Open()
	h.sup.Start()
	h.waitStatus(t, timing.StatusRunning)
	h.waitPending(t, runningTimers)
	require.NoError(t, h.sup.SetPayload(json.RawMessage(`{"sets":4}`)))

	h.clock.Set(h.clock.Now().Add(45 * time.Minute))
	summary, err := h.sup.Finish(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2_700), summary.ElapsedSeconds)
	require.Equal(t, time.UnixMilli(t0).UTC(), summary.StartedAt)
	require.JSONEq(t, `{"sets":4}`, string(summary.Payload))

	_, err = h.sup.Finish(context.Background())
	require.ErrorIs(t, err, ErrNoSession)

	sub.mu.Lock()
	require.Len(t, sub.summaries, 1)
	sub.mu.Unlock()
	require.Zero(t, h.backend.Len())
	h.waitStatus(t, timing.StatusIdle)
	require.Eventually(t, func() bool {
		return h.authority.State().Status == timing.StatusIdle
	}, waitFor, tick)
}

func TestFinishClearsEvenWhenSubmitFails(t *testing.T) {
	t.Parallel()

	sub := &recordingSubmitter{err: errors.New("offline")}
	h := newHarness(t, sub)
	h.sup.Open()
	h.sup.Start()
	h.waitStatus(t, timing.StatusRunning)

	_, err := h.sup.Finish(context.Background())
	require.ErrorContains(t, err, "offline")
	require.Zero(t, h.backend.Len())
}

func TestSubscribeReceivesProjections(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	updates, cancel := h.sup.Subscribe()
	defer cancel()
	h.sup.Open()
	h.sup.Start()

	select {
	case p := <-updates:
		require.Equal(t, timing.StatusRunning, p.Status)
		require.True(t, p.IsRunning)
	case <-time.After(waitFor):
		t.Fatal("no projection published")
	}
}

// scriptedAuthority answers lifecycle commands but never ticks, and only
// answers GET_TIME when told to.
type scriptedAuthority struct {
	mu         sync.Mutex
	sent       []wire.Command
	answerTime bool

	events chan wire.Event
	done   chan struct{}
}

func newScriptedAuthority() *scriptedAuthority {
	return &scriptedAuthority{
		events: make(chan wire.Event, 16),
		done:   make(chan struct{}),
	}
}

func (a *scriptedAuthority) Send(cmd wire.Command) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, cmd)
	switch cmd.Type {
	case wire.CmdStart:
		a.events <- wire.Started(cmd.AnchorEpochMs)
	case wire.CmdStop:
		a.events <- wire.Stopped()
	case wire.CmdGetTime:
		if a.answerTime {
			a.events <- wire.TimeUpdate(0, true)
		}
	}
	return true
}

func (a *scriptedAuthority) Events() <-chan wire.Event { return a.events }
func (a *scriptedAuthority) Done() <-chan struct{}     { return a.done }

func newScriptedHarness(t *testing.T) (*Supervisor, *scriptedAuthority, *actortest.FakeClock) {
	t.Helper()
	clock := actortest.NewFakeClock(time.UnixMilli(t0))
	auth := newScriptedAuthority()
	sup := New(Config{
		OwnerID:   owner,
		Authority: auth,
		Clock:     clock,
	})
	t.Cleanup(sup.Close)
	sup.Open()
	return sup, auth, clock
}

func TestSilentAuthorityDegrades(t *testing.T) {
	t.Parallel()

	sup, _, clock := newScriptedHarness(t)
	sup.Start()
	// Checkpoint and liveness; periodic resync is disabled.
	require.Eventually(t, func() bool { return clock.Pending() == 2 }, waitFor, tick)

	clock.Advance(3 * time.Second)
	require.Eventually(t, func() bool { return sup.Snapshot().Degraded }, waitFor, tick)
	require.Equal(t, int64(3), sup.Snapshot().ElapsedSeconds)

	// Snapshot keeps projecting from the wall clock between liveness checks.
	clock.Set(clock.Now().Add(time.Second))
	require.Equal(t, int64(4), sup.Snapshot().ElapsedSeconds)
	require.True(t, sup.Snapshot().IsRunning)
}

func TestResyncTimeoutLeavesLastValue(t *testing.T) {
	t.Parallel()

	sup, auth, clock := newScriptedHarness(t)
	sup.Start()
	require.Eventually(t, func() bool { return clock.Pending() == 2 }, waitFor, tick)

	sup.Resync()
	require.Eventually(t, func() bool { return clock.Pending() == 3 }, waitFor, tick)
	require.True(t, sup.loop.State().ResyncPending)

	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return !sup.loop.State().ResyncPending }, waitFor, tick)
	require.Equal(t, int64(0), sup.Snapshot().ElapsedSeconds)
	require.False(t, sup.Snapshot().Degraded)

	auth.mu.Lock()
	defer auth.mu.Unlock()
	require.Equal(t, wire.CmdGetTime, auth.sent[len(auth.sent)-1].Type)
}

func TestClosedSupervisorRejectsFinish(t *testing.T) {
	t.Parallel()

	sup, _, _ := newScriptedHarness(t)
	sup.Close()
	<-sup.Done()

	_, err := sup.Finish(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}
