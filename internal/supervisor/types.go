package supervisor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bhandras/workout/internal/actor"
	"github.com/bhandras/workout/internal/store"
	"github.com/bhandras/workout/internal/timing"
	"github.com/bhandras/workout/internal/wire"
	"github.com/bhandras/workout/pkg/logger"
)

// Authority is the command/event surface of the timing authority.
type Authority interface {
	Send(cmd wire.Command) bool
	Events() <-chan wire.Event
	Done() <-chan struct{}
}

// Repository persists and recovers the single resident session.
type Repository interface {
	SaveTimer(c store.TimerCheckpoint)
	SaveSession(c store.SessionCheckpoint)
	Load(requesterID string) (store.Snapshot, bool)
	Clear()
}

var _ Repository = (*store.Store)(nil)

// Submitter receives the summary of a finished session.
type Submitter interface {
	Submit(ctx context.Context, summary Summary) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, summary Summary) error

// Submit implements Submitter.
func (f SubmitterFunc) Submit(ctx context.Context, summary Summary) error {
	return f(ctx, summary)
}

// Summary describes a finished session.
type Summary struct {
	OwnerID        string          `json:"ownerId"`
	ElapsedSeconds int64           `json:"elapsedSeconds"`
	StartedAt      time.Time       `json:"startedAt"`
	FinishedAt     time.Time       `json:"finishedAt"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// Projection is what the application renders.
type Projection struct {
	ElapsedSeconds int64
	IsRunning      bool
	Status         timing.Status
	// Degraded is set while the authority has gone quiet and elapsed time is
	// projected from the wall clock.
	Degraded bool
}

// Inputs

type cmdStart struct {
	actor.InputBase
	NowMs int64
}

type cmdPause struct {
	actor.InputBase
}

type cmdResume struct {
	actor.InputBase
}

type cmdStop struct {
	actor.InputBase
}

// cmdFlush writes the current checkpoint and closes Done once the write has
// been attempted.
type cmdFlush struct {
	actor.InputBase
	NowMs int64
	Done  chan struct{}
}

type cmdSetPayload struct {
	actor.InputBase
	Payload json.RawMessage
	NowMs   int64
}

type cmdResync struct {
	actor.InputBase
}

type cmdRestore struct {
	actor.InputBase
	Snapshot store.Snapshot
	NowMs    int64
}

type cmdFinish struct {
	actor.InputBase
	NowMs int64
	Reply chan finishReply
}

type finishReply struct {
	Active  bool
	Summary Summary
}

// evAuthority carries an authority event, stamped when the pump received it.
type evAuthority struct {
	actor.InputBase
	Event wire.Event
	NowMs int64
}

// evSendFailed reports a command the authority did not accept.
type evSendFailed struct {
	actor.InputBase
	Cmd wire.Command
}

// evTimerFired is emitted by the runtime when a named timer fires.
type evTimerFired struct {
	actor.InputBase
	Name  string
	NowMs int64
}

// Effects

type effSend struct {
	actor.EffectBase
	Cmd wire.Command
}

type effStartTimer struct {
	actor.EffectBase
	Name    string
	AfterMs int64
}

type effCancelTimer struct {
	actor.EffectBase
	Name string
}

type effSaveTimer struct {
	actor.EffectBase
	Checkpoint store.TimerCheckpoint
}

type effSaveSession struct {
	actor.EffectBase
	Checkpoint store.SessionCheckpoint
}

type effClear struct {
	actor.EffectBase
}

type effPublish struct {
	actor.EffectBase
	Projection Projection
}

type effLog struct {
	actor.EffectBase
	Level   logger.Level
	Message string
}

type effFlushDone struct {
	actor.EffectBase
	Done chan struct{}
}

type effFinishReply struct {
	actor.EffectBase
	Reply  chan finishReply
	Result finishReply
}
