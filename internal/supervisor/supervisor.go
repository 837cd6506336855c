package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bhandras/workout/internal/actor"
	"github.com/bhandras/workout/internal/store"
	"github.com/bhandras/workout/internal/timing"
	"github.com/bhandras/workout/pkg/logger"
)

const (
	// DefaultCheckpointInterval is how often a running session is persisted.
	DefaultCheckpointInterval = 10 * time.Second
	// DefaultResyncTimeout bounds how long a GET_TIME may stay unanswered.
	DefaultResyncTimeout = 2 * time.Second
	// DefaultLivenessGrace is how long the authority may go without a TICK
	// before the projection degrades to the wall clock.
	DefaultLivenessGrace = 3 * time.Second
	// DefaultResyncInterval is the periodic GET_TIME cadence while running.
	DefaultResyncInterval = 5 * time.Minute
)

var (
	// ErrClosed is returned when the supervisor loop is not accepting input.
	ErrClosed = errors.New("supervisor closed")
	// ErrNoSession is returned by Finish when nothing is running or paused.
	ErrNoSession = errors.New("no active session")
	// ErrInvalidPayload is returned by SetPayload for non-JSON content.
	ErrInvalidPayload = errors.New("payload is not valid JSON")
)

// Config controls a Supervisor.
type Config struct {
	// OwnerID identifies the requester. Without it nothing is persisted or
	// restored.
	OwnerID string

	// Authority is the timing authority. When nil the supervisor creates and
	// owns a timing.Authority on Clock.
	Authority Authority

	// Repository persists checkpoints. Defaults to an in-memory store.
	Repository Repository

	// Submitter receives finished sessions. Optional.
	Submitter Submitter

	// Clock defaults to actor.RealClock.
	Clock actor.Clock

	CheckpointInterval time.Duration
	ResyncTimeout      time.Duration
	LivenessGrace      time.Duration
	// ResyncInterval is the periodic resync cadence. Zero disables it.
	ResyncInterval time.Duration
}

// Supervisor owns the application's view of a workout session.
type Supervisor struct {
	ownerID   string
	clock     actor.Clock
	authority Authority
	owned     *timing.Authority
	repo      Repository
	submitter Submitter

	rt   *Runtime
	loop *actor.Actor[State]

	quit      chan struct{}
	opened    atomic.Bool
	openOnce  sync.Once
	closeOnce sync.Once
}

// New creates a Supervisor. Call Open before issuing intents.
func New(cfg Config) *Supervisor {
	if cfg.Clock == nil {
		cfg.Clock = actor.RealClock{}
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = DefaultCheckpointInterval
	}
	if cfg.ResyncTimeout <= 0 {
		cfg.ResyncTimeout = DefaultResyncTimeout
	}
	if cfg.LivenessGrace <= 0 {
		cfg.LivenessGrace = DefaultLivenessGrace
	}
	if cfg.Repository == nil {
		cfg.Repository = store.New(store.NewMemoryBackend(), store.WithClock(cfg.Clock))
	}

	s := &Supervisor{
		ownerID:   cfg.OwnerID,
		clock:     cfg.Clock,
		authority: cfg.Authority,
		repo:      cfg.Repository,
		submitter: cfg.Submitter,
		quit:      make(chan struct{}),
	}
	if s.authority == nil {
		s.owned = timing.New(timing.Config{Clock: cfg.Clock})
		s.authority = s.owned
	}

	params := Params{
		CheckpointMs:     cfg.CheckpointInterval.Milliseconds(),
		ResyncTimeoutMs:  cfg.ResyncTimeout.Milliseconds(),
		LivenessMs:       cfg.LivenessGrace.Milliseconds(),
		ResyncIntervalMs: max(cfg.ResyncInterval, 0).Milliseconds(),
	}

	hooks := actor.Hooks[State]{
		OnInput: func(in actor.Input) {
			if logger.Enabled(logger.LevelTrace) {
				logger.Tracef("supervisor <- %T", in)
			}
		},
		OnTransition: func(prev, next State, _ actor.Input) {
			if prev.Timer.Status != next.Timer.Status {
				logger.Debugf("supervisor: %s -> %s", prev.Timer.Status, next.Timer.Status)
			}
		},
	}

	s.rt = NewRuntime(cfg.Clock, s.authority, s.repo)
	s.loop = actor.New[State](NewState(cfg.OwnerID, params), Reduce, s.rt,
		actor.WithName[State]("supervisor"),
		actor.WithHooks(hooks),
	)
	return s
}

// Open starts the supervisor loop, the owned authority if any, and the
// pump that forwards authority events in order.
func (s *Supervisor) Open() {
	s.openOnce.Do(func() {
		if s.owned != nil {
			s.owned.Start()
		}
		s.loop.Start()
		s.opened.Store(true)
		go s.pump()
	})
}

// Close stops the supervisor and the owned authority. Persisted state is
// left untouched; call Flush first to record the latest checkpoint.
func (s *Supervisor) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		s.loop.Stop()
		if s.owned != nil {
			s.owned.Stop()
		}
	})
}

// Done closes once the supervisor loop has exited.
func (s *Supervisor) Done() <-chan struct{} {
	return s.loop.Done()
}

func (s *Supervisor) pump() {
	events := s.authority.Events()
	for {
		select {
		case ev := <-events:
			if !s.loop.Enqueue(evAuthority{Event: ev, NowMs: s.nowMs()}) {
				logger.Warnf("supervisor: dropped authority event %s", ev)
			}
		case <-s.authority.Done():
			logger.Warnf("supervisor: authority exited")
			return
		case <-s.quit:
			return
		}
	}
}

// Start begins a session anchored at the current wall clock. Ignored while a
// session is running or paused.
func (s *Supervisor) Start() {
	s.enqueue(cmdStart{NowMs: s.nowMs()})
}

// Pause freezes a running session.
func (s *Supervisor) Pause() {
	s.enqueue(cmdPause{})
}

// Resume continues a paused session.
func (s *Supervisor) Resume() {
	s.enqueue(cmdResume{})
}

// Stop ends the session and deletes its checkpoint.
func (s *Supervisor) Stop() {
	s.enqueue(cmdStop{})
}

// Resync asks the authority for the current time. The reply overwrites the
// cached projection.
func (s *Supervisor) Resync() {
	s.enqueue(cmdResync{})
}

// SetPayload replaces the opaque session payload and checkpoints it. It is
// ignored while no session is active.
func (s *Supervisor) SetPayload(payload json.RawMessage) error {
	if len(payload) > 0 && !json.Valid(payload) {
		return ErrInvalidPayload
	}
	s.enqueue(cmdSetPayload{Payload: payload, NowMs: s.nowMs()})
	return nil
}

// Flush synchronously writes the current checkpoint. It is meant for
// process exit and returns once the write has been attempted. The write is
// queued behind intents already issued, so Stop followed by Flush never
// writes the stopped session back. Flush before Open or after Close does
// nothing.
func (s *Supervisor) Flush() {
	if !s.opened.Load() {
		return
	}
	done := make(chan struct{})
	if !s.enqueue(cmdFlush{NowMs: s.nowMs(), Done: done}) {
		return
	}
	select {
	case <-done:
	case <-s.loop.Done():
	}
}

// Restore rehydrates the resident session if it is eligible for this owner.
// It reports whether a session was restored; otherwise the supervisor starts
// fresh and the store has already discarded anything it rejected.
func (s *Supervisor) Restore() bool {
	if s.ownerID == "" {
		return false
	}
	snap, ok := s.repo.Load(s.ownerID)
	if !ok {
		return false
	}
	if !s.enqueue(cmdRestore{Snapshot: snap, NowMs: s.nowMs()}) {
		return false
	}
	logger.Infof("supervisor: restoring session started %s",
		time.UnixMilli(snap.Timer.AnchorEpochMs).UTC().Format(time.RFC3339))
	return true
}

// Finish ends the active session and hands its summary to the Submitter.
// The checkpoint is cleared whether or not the submission succeeds. A
// session is only ever handed out once.
func (s *Supervisor) Finish(ctx context.Context) (Summary, error) {
	reply := make(chan finishReply, 1)
	if !s.enqueue(cmdFinish{NowMs: s.nowMs(), Reply: reply}) {
		return Summary{}, ErrClosed
	}

	var res finishReply
	select {
	case res = <-reply:
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case <-s.loop.Done():
		return Summary{}, ErrClosed
	}
	if !res.Active {
		return Summary{}, ErrNoSession
	}
	if s.submitter == nil {
		return res.Summary, nil
	}
	if err := s.submitter.Submit(ctx, res.Summary); err != nil {
		return res.Summary, fmt.Errorf("submit session: %w", err)
	}
	return res.Summary, nil
}

// Snapshot returns the current projection. While degraded, elapsed time is
// projected from the wall clock at the moment of the call.
func (s *Supervisor) Snapshot() Projection {
	state := s.loop.State()
	p := state.Projection()
	if state.Degraded && state.Timer.Running() {
		p.ElapsedSeconds = state.wallClockSeconds(s.nowMs())
	}
	return p
}

// Subscribe returns a channel of projection updates and a function that
// cancels the subscription.
func (s *Supervisor) Subscribe() (<-chan Projection, func()) {
	return s.rt.subscribe()
}

func (s *Supervisor) enqueue(in actor.Input) bool {
	if !s.loop.Enqueue(in) {
		logger.Warnf("supervisor: dropped %T", in)
		return false
	}
	return true
}

func (s *Supervisor) nowMs() int64 {
	return s.clock.Now().UnixMilli()
}
