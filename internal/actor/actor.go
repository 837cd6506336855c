// Package actor runs reducer-driven event loops.
//
// Each Actor owns its state on one goroutine. Inputs arrive through a
// bounded mailbox, a pure reducer turns (state, input) into the next state
// plus a list of effects, and a Runtime carries those effects out. Anything
// a runtime learns (a timer fired, a peer replied) comes back as another
// input, so state is only ever touched by the loop.
//
// The timing authority and the supervisor are both actors and talk to each
// other only through mailboxes.
package actor

import (
	"context"
	"sync"

	"github.com/bhandras/workout/pkg/logger"
)

// Input is anything that can be placed in a mailbox: caller commands as well
// as observations reported by a runtime or a peer.
type Input interface {
	isActorInput()
}

// Effect is a side-effect described as data. Only a Runtime executes it.
type Effect interface {
	isActorEffect()
}

// ReducerFunc computes the next state for one input.
//
// A reducer must not perform I/O, start goroutines or read the clock;
// timestamps travel on the inputs. Given the same state and input it must
// return the same result.
type ReducerFunc[S any] func(state S, input Input) (next S, effects []Effect)

// Runtime executes effects on behalf of an actor.
type Runtime interface {
	// HandleEffects runs on the loop goroutine and must not block for long.
	// Follow-up inputs are delivered through emit. Nothing may be emitted
	// after ctx is canceled.
	HandleEffects(ctx context.Context, effects []Effect, emit func(Input))

	// Stop releases timers and goroutines. Repeated calls are allowed.
	Stop()
}

// Hooks observe the loop. Every field is optional.
type Hooks[S any] struct {
	// OnInput sees each input as it leaves the mailbox.
	OnInput func(input Input)
	// OnTransition sees the state before and after an input was reduced.
	OnTransition func(prev S, next S, input Input)
	// OnEffects sees non-empty effect lists before the runtime does.
	OnEffects func(effects []Effect)
	// OnDrop sees inputs rejected by a full mailbox. Without it the drop is
	// logged as a warning.
	OnDrop func(input Input)
	// OnPanic receives a recovered loop panic. Without it the panic is
	// re-raised.
	OnPanic func(recovered any)
}

const defaultMailboxSize = 256

// Actor is a single-goroutine state owner.
type Actor[S any] struct {
	name    string
	reducer ReducerFunc[S]
	runtime Runtime
	hooks   Hooks[S]
	mailbox chan Input

	stateMu sync.Mutex
	state   S

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
}

// Option customizes an Actor at construction.
type Option[S any] func(*Actor[S])

// WithHooks installs observation hooks.
func WithHooks[S any](hooks Hooks[S]) Option[S] {
	return func(a *Actor[S]) { a.hooks = hooks }
}

// WithMailboxSize bounds the mailbox. Non-positive sizes are ignored.
func WithMailboxSize[S any](n int) Option[S] {
	return func(a *Actor[S]) {
		if n > 0 {
			a.mailbox = make(chan Input, n)
		}
	}
}

// WithName sets the label used in log lines.
func WithName[S any](name string) Option[S] {
	return func(a *Actor[S]) { a.name = name }
}

// New builds an actor. It does nothing until Start.
func New[S any](initial S, reducer ReducerFunc[S], runtime Runtime, opts ...Option[S]) *Actor[S] {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Actor[S]{
		name:    "actor",
		reducer: reducer,
		runtime: runtime,
		mailbox: make(chan Input, defaultMailboxSize),
		state:   initial,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the actor's log label.
func (a *Actor[S]) Name() string { return a.name }

// Start spawns the loop goroutine. Only the first call has an effect.
func (a *Actor[S]) Start() {
	a.startOnce.Do(func() { go a.run() })
}

// Stop cancels the loop and the runtime's background work. Inputs still in
// the mailbox are discarded. Repeated calls are allowed.
func (a *Actor[S]) Stop() {
	a.cancel()
	if a.runtime != nil {
		a.runtime.Stop()
	}
}

// Done is closed when the loop goroutine returns. It never closes for an
// actor that was not started.
func (a *Actor[S]) Done() <-chan struct{} { return a.done }

// Enqueue offers input to the mailbox and never blocks. It returns false
// once the actor is stopped or while the mailbox is full.
func (a *Actor[S]) Enqueue(input Input) bool {
	if input == nil || a.ctx.Err() != nil {
		return false
	}
	select {
	case a.mailbox <- input:
		return true
	default:
	}

	if a.hooks.OnDrop != nil {
		a.hooks.OnDrop(input)
	} else {
		logger.Warnf("%s: mailbox full, dropping %T", a.name, input)
	}
	return false
}

// State returns a copy of the current state. Slices and maps inside it are
// shared with the loop and must be treated as read-only.
func (a *Actor[S]) State() S {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.state
}

func (a *Actor[S]) run() {
	defer close(a.done)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if a.hooks.OnPanic == nil {
			panic(r)
		}
		a.hooks.OnPanic(r)
	}()

	emit := func(in Input) { a.Enqueue(in) }
	for {
		select {
		case <-a.ctx.Done():
			return
		case in := <-a.mailbox:
			if in != nil {
				a.process(in, emit)
			}
		}
	}
}

// process reduces one input and hands the resulting effects to the runtime.
func (a *Actor[S]) process(in Input, emit func(Input)) {
	if a.hooks.OnInput != nil {
		a.hooks.OnInput(in)
	}

	prev := a.State()
	next, effects := a.reducer(prev, in)
	a.stateMu.Lock()
	a.state = next
	a.stateMu.Unlock()

	if a.hooks.OnTransition != nil {
		a.hooks.OnTransition(prev, next, in)
	}
	if len(effects) == 0 {
		return
	}
	if a.hooks.OnEffects != nil {
		a.hooks.OnEffects(effects)
	}
	if a.runtime != nil {
		a.runtime.HandleEffects(a.ctx, effects, emit)
	}
}
