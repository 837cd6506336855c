package store

import (
	"errors"
	"time"

	"github.com/bhandras/workout/internal/actor"
	"github.com/bhandras/workout/pkg/logger"
)

const (
	// DefaultTTL is how long a checkpoint stays eligible for recovery.
	DefaultTTL = 2 * time.Hour

	// TimerKey is the slot holding the timer-only checkpoint.
	TimerKey = "workout.timer"
	// SessionKey is the slot holding the full session checkpoint.
	SessionKey = "workout.session"
)

// Store is the single-slot session repository.
//
// At most one session is resident. Writes are unconditional overwrites;
// reads apply the eligibility predicate (owner match and within TTL) and
// delete anything that fails it.
type Store struct {
	backend Backend
	codec   Codec
	clock   actor.Clock
	ttl     time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithCodec selects the value encoding. Defaults to JSONCodec.
func WithCodec(c Codec) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithClock sets the clock used for TTL checks.
func WithClock(c actor.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// New returns a Store on top of backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		codec:   JSONCodec{},
		clock:   actor.RealClock{},
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the staleness window.
func (s *Store) TTL() time.Duration { return s.ttl }

// SaveTimer overwrites the timer slot. Failures are logged and swallowed.
func (s *Store) SaveTimer(c TimerCheckpoint) {
	s.put(TimerKey, c)
}

// SaveSession overwrites the session slot. Failures are logged and swallowed.
func (s *Store) SaveSession(c SessionCheckpoint) {
	s.put(SessionKey, c)
}

// Load returns the resident session if it belongs to requesterID and is
// within the TTL. Any rejected slot is deleted before returning.
func (s *Store) Load(requesterID string) (Snapshot, bool) {
	nowMs := s.clock.Now().UnixMilli()

	timer, verdict := loadSlot[TimerCheckpoint](s, TimerKey, requesterID, nowMs)
	switch verdict {
	case slotOK:
	case slotUnreadable:
		return Snapshot{}, false
	default:
		// Without an eligible timer there is nothing to resume; a session
		// slot on its own would be orphaned.
		s.Clear()
		return Snapshot{}, false
	}

	snap := Snapshot{Timer: timer}
	session, verdict := loadSlot[SessionCheckpoint](s, SessionKey, requesterID, nowMs)
	switch verdict {
	case slotOK:
		snap.Session = &session
	case slotMissing, slotUnreadable:
	default:
		s.delete(SessionKey)
	}
	return snap, true
}

// Clear deletes both slots.
func (s *Store) Clear() {
	s.delete(TimerKey)
	s.delete(SessionKey)
}

type slotVerdict int

const (
	slotOK slotVerdict = iota
	slotMissing
	slotUnreadable
	slotCorrupt
	slotForeign
	slotStale
)

func (v slotVerdict) String() string {
	switch v {
	case slotOK:
		return "ok"
	case slotMissing:
		return "missing"
	case slotUnreadable:
		return "unreadable"
	case slotCorrupt:
		return "corrupt"
	case slotForeign:
		return "owner mismatch"
	case slotStale:
		return "expired"
	default:
		return "unknown"
	}
}

// loadSlot reads and classifies one slot. It never deletes; the caller
// decides what a rejection means for the other slot.
func loadSlot[T checkpoint](s *Store, key, requesterID string, nowMs int64) (T, slotVerdict) {
	var zero T

	raw, err := s.backend.Get(key)
	switch {
	case errors.Is(err, ErrNotFound):
		return zero, slotMissing
	case errors.Is(err, ErrCorrupt):
		logger.Warnf("store: %s rejected: %v", key, err)
		return zero, slotCorrupt
	case err != nil:
		logger.Warnf("store: read %s failed: %v", key, err)
		return zero, slotUnreadable
	}

	var c T
	if err := s.codec.Unmarshal(raw, &c); err != nil {
		logger.Warnf("store: %s rejected: decode: %v", key, err)
		return zero, slotCorrupt
	}
	if err := c.validate(); err != nil {
		logger.Warnf("store: %s rejected: %v", key, err)
		return zero, slotCorrupt
	}

	verdict := eligibility(c, requesterID, nowMs, s.ttl)
	if verdict != slotOK {
		logger.Infof("store: %s rejected: %s", key, verdict)
		return zero, verdict
	}
	return c, slotOK
}

// eligibility is the single recovery predicate: owner match and age within
// ttl, inclusive.
func eligibility(c checkpoint, requesterID string, nowMs int64, ttl time.Duration) slotVerdict {
	if requesterID == "" || c.owner() != requesterID {
		return slotForeign
	}
	if nowMs-c.checkpointedAt() > ttl.Milliseconds() {
		return slotStale
	}
	return slotOK
}

func (s *Store) put(key string, v any) {
	raw, err := s.codec.Marshal(v)
	if err != nil {
		logger.Warnf("store: encode %s failed: %v", key, err)
		return
	}
	if err := s.backend.Put(key, raw); err != nil {
		logger.Warnf("store: write %s failed: %v", key, err)
	}
}

func (s *Store) delete(key string) {
	if err := s.backend.Delete(key); err != nil {
		logger.Warnf("store: delete %s failed: %v", key, err)
	}
}
