package timing

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bhandras/workout/internal/actor"
	"github.com/bhandras/workout/internal/wire"
	"github.com/bhandras/workout/pkg/logger"
)

// Runtime interprets authority effects: it owns the tick timer and the
// outbound event channel.
//
// Runtime never touches authority state; ticks re-enter the reducer as evTick.
type Runtime struct {
	mu sync.Mutex

	clock    actor.Clock
	interval time.Duration
	out      chan wire.Event

	ticker    actor.Timer
	tickerGen int64
}

// NewRuntime returns a runtime publishing events on out.
func NewRuntime(clock actor.Clock, interval time.Duration, out chan wire.Event) *Runtime {
	return &Runtime{clock: clock, interval: interval, out: out}
}

// HandleEffects implements actor.Runtime.
func (r *Runtime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	for _, eff := range effects {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch e := eff.(type) {
		case effEmit:
			r.publish(ctx, e.Event)
		case effStartTicker:
			r.startTicker(ctx, emit)
		case effStopTicker:
			r.stopTicker()
		}
	}
}

// Stop implements actor.Runtime.
func (r *Runtime) Stop() {
	r.stopTicker()
}

// publish delivers ev in order. TICKs are dropped when the consumer lags
// because the next TICK supersedes them; every other event waits for room.
func (r *Runtime) publish(ctx context.Context, ev wire.Event) {
	if logger.Enabled(logger.LevelTrace) {
		if raw, err := json.Marshal(ev); err == nil {
			logger.Tracef("authority -> %s", raw)
		}
	}

	if ev.Type == wire.EvTick {
		select {
		case r.out <- ev:
		default:
		}
		return
	}
	select {
	case r.out <- ev:
	case <-ctx.Done():
	}
}

func (r *Runtime) startTicker(ctx context.Context, emit func(actor.Input)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ticker != nil {
		r.ticker.Stop()
	}
	r.tickerGen++
	r.armLocked(ctx, r.tickerGen, emit)
}

// armLocked schedules the next tick for generation gen. Each firing re-arms
// itself, so a stopped or replaced ticker dies after at most one callback.
func (r *Runtime) armLocked(ctx context.Context, gen int64, emit func(actor.Input)) {
	r.ticker = r.clock.AfterFunc(r.interval, func() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r.mu.Lock()
		if gen != r.tickerGen {
			r.mu.Unlock()
			return
		}
		r.armLocked(ctx, gen, emit)
		r.mu.Unlock()

		emit(evTick{NowMs: r.clock.Now().UnixMilli()})
	})
}

func (r *Runtime) stopTicker() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickerGen++
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}
