// Package actortest holds doubles for testing actors and their runtimes.
package actortest

import (
	"context"
	"sync"

	"github.com/bhandras/workout/internal/actor"
)

// FakeRuntime records the effects it is given instead of executing them.
// Set EmitFn to answer selected effects with follow-up inputs.
type FakeRuntime struct {
	EmitFn func(ctx context.Context, eff actor.Effect, emit func(actor.Input))

	mu       sync.Mutex
	recorded []actor.Effect
	stopped  int
}

var _ actor.Runtime = (*FakeRuntime)(nil)

// HandleEffects implements actor.Runtime.
func (f *FakeRuntime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	f.mu.Lock()
	f.recorded = append(f.recorded, effects...)
	respond := f.EmitFn
	f.mu.Unlock()

	if respond == nil {
		return
	}
	for _, eff := range effects {
		respond(ctx, eff, emit)
	}
}

// Stop implements actor.Runtime.
func (f *FakeRuntime) Stop() {
	f.mu.Lock()
	f.stopped++
	f.mu.Unlock()
}

// Stops counts Stop calls.
func (f *FakeRuntime) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// Effects returns a copy of everything recorded so far.
func (f *FakeRuntime) Effects() []actor.Effect {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]actor.Effect(nil), f.recorded...)
}

// Reset forgets recorded effects.
func (f *FakeRuntime) Reset() {
	f.mu.Lock()
	f.recorded = nil
	f.mu.Unlock()
}
