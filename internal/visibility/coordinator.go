// Package visibility turns foreground/background and unload notifications
// into supervisor actions.
package visibility

import (
	"sync"
	"time"

	"github.com/bhandras/workout/internal/actor"
	"github.com/bhandras/workout/pkg/logger"
)

// Signal is a visibility change of the hosting context.
type Signal int

const (
	// Hidden means the context went to the background or was suspended.
	Hidden Signal = iota + 1
	// Visible means the context is in the foreground again.
	Visible
	// Unload means the context is about to go away.
	Unload
)

func (s Signal) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Visible:
		return "visible"
	case Unload:
		return "unload"
	default:
		return "unknown"
	}
}

// Target is what the coordinator drives. *supervisor.Supervisor satisfies it.
type Target interface {
	Resync()
	Flush()
}

// Handler consumes visibility signals.
type Handler interface {
	Handle(sig Signal)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(sig Signal)

// Handle implements Handler.
func (f HandlerFunc) Handle(sig Signal) { f(sig) }

// Coordinator maps signals onto a Target.
//
// Hidden only records when the context went away; nothing is written while
// hidden because the periodic checkpoint already covers it. Visible asks the
// target to resync. Unload flushes synchronously.
type Coordinator struct {
	target Target
	clock  actor.Clock

	mu            sync.Mutex
	hiddenAt      time.Time
	lastHiddenFor time.Duration
}

var _ Handler = (*Coordinator)(nil)

// New returns a Coordinator. A nil clock means the wall clock.
func New(target Target, clock actor.Clock) *Coordinator {
	if clock == nil {
		clock = actor.RealClock{}
	}
	return &Coordinator{target: target, clock: clock}
}

// Handle implements Handler.
func (c *Coordinator) Handle(sig Signal) {
	switch sig {
	case Hidden:
		c.mu.Lock()
		if c.hiddenAt.IsZero() {
			c.hiddenAt = c.clock.Now()
		}
		c.mu.Unlock()
		logger.Debugf("visibility: hidden")

	case Visible:
		c.mu.Lock()
		since := c.hiddenAt
		c.hiddenAt = time.Time{}
		if !since.IsZero() {
			c.lastHiddenFor = c.clock.Now().Sub(since)
		}
		hiddenFor := c.lastHiddenFor
		c.mu.Unlock()

		if since.IsZero() {
			logger.Debugf("visibility: visible")
		} else {
			logger.Infof("visibility: visible after %s hidden", hiddenFor.Round(time.Millisecond))
		}
		c.target.Resync()

	case Unload:
		logger.Debugf("visibility: unload, flushing checkpoint")
		c.target.Flush()

	default:
		logger.Debugf("visibility: ignoring %s", sig)
	}
}

// HiddenSince reports when the context went hidden, if it still is.
func (c *Coordinator) HiddenSince() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hiddenAt, !c.hiddenAt.IsZero()
}

// LastHiddenFor returns the duration of the most recent completed hidden
// period.
func (c *Coordinator) LastHiddenFor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHiddenFor
}
