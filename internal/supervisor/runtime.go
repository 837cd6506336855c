package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/bhandras/workout/internal/actor"
	"github.com/bhandras/workout/pkg/logger"
)

const subscriberBuffer = 16

// Runtime interprets supervisor effects.
//
// Store writes run inline on the actor goroutine so that a checkpoint can
// never land after the Clear that follows it.
type Runtime struct {
	mu sync.Mutex

	clock     actor.Clock
	authority Authority
	repo      Repository

	timers   map[string]actor.Timer
	timerGen map[string]int64

	subs    map[int]chan Projection
	nextSub int
}

// NewRuntime returns a runtime bound to an authority and a repository.
func NewRuntime(clock actor.Clock, authority Authority, repo Repository) *Runtime {
	return &Runtime{
		clock:     clock,
		authority: authority,
		repo:      repo,
		timers:    make(map[string]actor.Timer),
		timerGen:  make(map[string]int64),
		subs:      make(map[int]chan Projection),
	}
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
		case effSend:
			if !r.authority.Send(e.Cmd) {
				logger.Warnf("supervisor: authority rejected %s", e.Cmd)
				emit(evSendFailed{Cmd: e.Cmd})
			}
		case effStartTimer:
			r.startTimer(ctx, e, emit)
		case effCancelTimer:
			r.cancelTimer(e.Name)
		case effSaveTimer:
			r.repo.SaveTimer(e.Checkpoint)
		case effSaveSession:
			r.repo.SaveSession(e.Checkpoint)
		case effClear:
			r.repo.Clear()
		case effPublish:
			r.publish(e.Projection)
		case effLog:
			logAt(e.Level, e.Message)
		case effFlushDone:
			close(e.Done)
		case effFinishReply:
			select {
			case e.Reply <- e.Result:
			default:
			}
		}
	}
}

// Stop implements actor.Runtime.
func (r *Runtime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, t := range r.timers {
		t.Stop()
		r.timerGen[name]++
		delete(r.timers, name)
	}
}

// startTimer schedules a single named timer and emits evTimerFired when it
// fires. A timer replaced or canceled before its callback runs emits nothing.
func (r *Runtime) startTimer(ctx context.Context, eff effStartTimer, emit func(actor.Input)) {
	if eff.Name == "" || eff.AfterMs <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev := r.timers[eff.Name]; prev != nil {
		prev.Stop()
	}
	r.timerGen[eff.Name]++
	gen := r.timerGen[eff.Name]
	after := time.Duration(eff.AfterMs) * time.Millisecond
	r.timers[eff.Name] = r.clock.AfterFunc(after, func() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.mu.Lock()
		current := r.timerGen[eff.Name] == gen
		if current {
			delete(r.timers, eff.Name)
		}
		r.mu.Unlock()
		if !current {
			return
		}
		emit(evTimerFired{Name: eff.Name, NowMs: r.clock.Now().UnixMilli()})
	})
}

func (r *Runtime) cancelTimer(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t := r.timers[name]; t != nil {
		t.Stop()
	}
	r.timerGen[name]++
	delete(r.timers, name)
}

func (r *Runtime) subscribe() (<-chan Projection, func()) {
	ch := make(chan Projection, subscriberBuffer)

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// publish fans out p. Slow subscribers miss intermediate projections; the
// next one supersedes them.
func (r *Runtime) publish(p Projection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

func logAt(level logger.Level, msg string) {
	switch level {
	case logger.LevelTrace:
		logger.Tracef("supervisor: %s", msg)
	case logger.LevelDebug:
		logger.Debugf("supervisor: %s", msg)
	case logger.LevelInfo:
		logger.Infof("supervisor: %s", msg)
	case logger.LevelWarn:
		logger.Warnf("supervisor: %s", msg)
	default:
		logger.Errorf("supervisor: %s", msg)
	}
}
