package timing

import (
	"time"

	"github.com/bhandras/workout/internal/actor"
	"github.com/bhandras/workout/internal/wire"
	"github.com/bhandras/workout/pkg/logger"
)

const (
	// DefaultTickInterval is the TICK cadence while running.
	DefaultTickInterval = time.Second

	defaultEventBuffer = 64
)

// Config controls an Authority instance.
type Config struct {
	// Clock stamps commands and drives the ticker. Defaults to RealClock.
	Clock actor.Clock

	// TickInterval is the TICK cadence. Defaults to DefaultTickInterval.
	TickInterval time.Duration

	// EventBuffer bounds the outbound event queue.
	EventBuffer int
}

// Authority is the isolated timing context. It accepts wire commands and
// publishes wire events; nothing else about it is observable.
type Authority struct {
	clock  actor.Clock
	events chan wire.Event
	loop   *actor.Actor[State]
}

// New creates an Authority. Call Start before sending commands.
func New(cfg Config) *Authority {
	if cfg.Clock == nil {
		cfg.Clock = actor.RealClock{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}

	events := make(chan wire.Event, cfg.EventBuffer)
	rt := NewRuntime(cfg.Clock, cfg.TickInterval, events)

	hooks := actor.Hooks[State]{
		OnTransition: func(prev, next State, in actor.Input) {
			if prev.Status != next.Status {
				logger.Debugf("authority: %s -> %s", prev.Status, next.Status)
			}
		},
	}

	return &Authority{
		clock:  cfg.Clock,
		events: events,
		loop: actor.New[State](NewState(), Reduce, rt,
			actor.WithName[State]("authority"),
			actor.WithHooks(hooks),
		),
	}
}

// Start launches the authority goroutine.
func (a *Authority) Start() {
	a.loop.Start()
}

// Send stamps cmd with the current wall clock and enqueues it. It never
// blocks; false means the authority is gone or saturated.
func (a *Authority) Send(cmd wire.Command) bool {
	logger.Tracef("authority <- %s", cmd)
	return a.loop.Enqueue(cmdInput{Cmd: cmd, NowMs: a.clock.Now().UnixMilli()})
}

// Events returns the ordered event stream. The channel is never closed; use
// Done to observe termination.
func (a *Authority) Events() <-chan wire.Event {
	return a.events
}

// Stop terminates the authority. Pending commands are discarded.
func (a *Authority) Stop() {
	a.loop.Stop()
}

// Done closes once the authority goroutine has exited.
func (a *Authority) Done() <-chan struct{} {
	return a.loop.Done()
}

// State returns a copy of the authority state for diagnostics and tests.
func (a *Authority) State() State {
	return a.loop.State()
}
