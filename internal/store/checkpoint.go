package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TimerCheckpoint is the timer-only checkpoint written on every checkpoint
// tick and on every pause/resume.
type TimerCheckpoint struct {
	OwnerID       string `json:"ownerId"`
	AnchorEpochMs int64  `json:"anchorEpochMs"`
	IsRunning     bool   `json:"isRunning"`

	// PausedAccumulatedMs is the total completed pause time.
	PausedAccumulatedMs int64 `json:"pausedAccumulatedMs"`
	// PausedAtEpochMs is set when the timer was paused at checkpoint time.
	PausedAtEpochMs int64 `json:"pausedAtEpochMs,omitempty"`

	CheckpointEpochMs int64 `json:"checkpointEpochMs"`
}

// SessionCheckpoint is the full session checkpoint, written whenever the
// session payload changes while a session is active.
type SessionCheckpoint struct {
	OwnerID string `json:"ownerId"`
	Active  bool   `json:"active"`

	// Payload is opaque session content owned by the application.
	Payload json.RawMessage `json:"payload,omitempty"`

	// ElapsedSeconds is informational only. Recovery always recomputes
	// elapsed time from the timer checkpoint's anchor.
	ElapsedSeconds int64  `json:"elapsedSeconds"`
	StartedAtISO   string `json:"startedAtIso"`

	CheckpointEpochMs int64 `json:"checkpointEpochMs"`
}

// Snapshot is a recovered session.
type Snapshot struct {
	Timer TimerCheckpoint
	// Session is nil when no eligible session checkpoint was found.
	Session *SessionCheckpoint
}

// OwnerID returns the identity the snapshot belongs to.
func (s Snapshot) OwnerID() string { return s.Timer.OwnerID }

// Payload returns the recovered payload, if any.
func (s Snapshot) Payload() json.RawMessage {
	if s.Session == nil {
		return nil
	}
	return s.Session.Payload
}

// checkpoint is the part of a slot value the eligibility predicate needs.
type checkpoint interface {
	owner() string
	checkpointedAt() int64
	validate() error
}

func (c TimerCheckpoint) owner() string         { return c.OwnerID }
func (c TimerCheckpoint) checkpointedAt() int64 { return c.CheckpointEpochMs }

func (c TimerCheckpoint) validate() error {
	switch {
	case strings.TrimSpace(c.OwnerID) == "":
		return fmt.Errorf("%w: missing ownerId", ErrCorrupt)
	case c.AnchorEpochMs <= 0:
		return fmt.Errorf("%w: missing anchorEpochMs", ErrCorrupt)
	case c.PausedAccumulatedMs < 0:
		return fmt.Errorf("%w: negative pausedAccumulatedMs", ErrCorrupt)
	case !c.IsRunning && c.PausedAtEpochMs < c.AnchorEpochMs:
		return fmt.Errorf("%w: paused checkpoint without pausedAtEpochMs", ErrCorrupt)
	case c.IsRunning && c.PausedAtEpochMs != 0:
		return fmt.Errorf("%w: running checkpoint with pausedAtEpochMs", ErrCorrupt)
	}
	return nil
}

func (c SessionCheckpoint) owner() string         { return c.OwnerID }
func (c SessionCheckpoint) checkpointedAt() int64 { return c.CheckpointEpochMs }

func (c SessionCheckpoint) validate() error {
	if strings.TrimSpace(c.OwnerID) == "" {
		return fmt.Errorf("%w: missing ownerId", ErrCorrupt)
	}
	if len(c.Payload) > 0 && !json.Valid(c.Payload) {
		return fmt.Errorf("%w: payload is not valid JSON", ErrCorrupt)
	}
	return nil
}
