package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version stamped on every encoded message.
const Version = 1

var (
	// ErrUnknownType is returned for a message type this version does not know.
	ErrUnknownType = errors.New("unknown message type")
	// ErrVersion is returned for a message from an unsupported protocol version.
	ErrVersion = errors.New("unsupported protocol version")
	// ErrInvalid is returned for a message missing required fields.
	ErrInvalid = errors.New("invalid message")
)

// header is decoded first to route the rest of the message.
type header struct {
	V    int    `json:"v"`
	Type string `json:"type"`
}

type anchorBody struct {
	V             int         `json:"v"`
	Type          CommandType `json:"type"`
	AnchorEpochMs int64       `json:"anchorEpochMs"`
}

type restoreBody struct {
	V                   int         `json:"v"`
	Type                CommandType `json:"type"`
	AnchorEpochMs       int64       `json:"anchorEpochMs"`
	PausedAccumulatedMs int64       `json:"pausedAccumulatedMs"`
	PausedAtEpochMs     int64       `json:"pausedAtEpochMs,omitempty"`
}

type eventBody struct {
	V                   int       `json:"v"`
	Type                EventType `json:"type"`
	AnchorEpochMs       *int64    `json:"anchorEpochMs,omitempty"`
	ElapsedSeconds      *int64    `json:"elapsedSeconds,omitempty"`
	IsRunning           *bool     `json:"isRunning,omitempty"`
	PausedAccumulatedMs *int64    `json:"pausedAccumulatedMs,omitempty"`
	PausedAtEpochMs     *int64    `json:"pausedAtEpochMs,omitempty"`
}

// MarshalJSON encodes the command with only the fields its type defines.
func (c Command) MarshalJSON() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Type {
	case CmdStart:
		return json.Marshal(anchorBody{V: Version, Type: c.Type, AnchorEpochMs: c.AnchorEpochMs})
	case CmdRestore:
		return json.Marshal(restoreBody{
			V:                   Version,
			Type:                c.Type,
			AnchorEpochMs:       c.AnchorEpochMs,
			PausedAccumulatedMs: c.PausedAccumulatedMs,
			PausedAtEpochMs:     c.PausedAtEpochMs,
		})
	default:
		return json.Marshal(header{V: Version, Type: string(c.Type)})
	}
}

// UnmarshalJSON decodes and validates a command.
func (c *Command) UnmarshalJSON(data []byte) error {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if h.V != Version {
		return fmt.Errorf("%w: %d", ErrVersion, h.V)
	}
	var body restoreBody
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	out := Command{Type: CommandType(h.Type)}
	switch out.Type {
	case CmdStart:
		out.AnchorEpochMs = body.AnchorEpochMs
	case CmdRestore:
		out.AnchorEpochMs = body.AnchorEpochMs
		out.PausedAccumulatedMs = body.PausedAccumulatedMs
		out.PausedAtEpochMs = body.PausedAtEpochMs
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*c = out
	return nil
}

// MarshalJSON encodes the event with only the fields its type defines.
func (e Event) MarshalJSON() ([]byte, error) {
	if !e.known() {
		return nil, fmt.Errorf("%w: event %q", ErrUnknownType, e.Type)
	}
	body := eventBody{V: Version, Type: e.Type}
	switch e.Type {
	case EvStarted:
		body.AnchorEpochMs = &e.AnchorEpochMs
	case EvPaused:
		body.ElapsedSeconds = &e.ElapsedSeconds
		body.PausedAtEpochMs = &e.PausedAtEpochMs
	case EvResumed:
		body.PausedAccumulatedMs = &e.PausedAccumulatedMs
	case EvTick:
		body.ElapsedSeconds = &e.ElapsedSeconds
	case EvTimeUpdate:
		body.ElapsedSeconds = &e.ElapsedSeconds
		body.IsRunning = &e.IsRunning
	case EvRestored:
		body.AnchorEpochMs = &e.AnchorEpochMs
		body.ElapsedSeconds = &e.ElapsedSeconds
		body.IsRunning = &e.IsRunning
		body.PausedAccumulatedMs = &e.PausedAccumulatedMs
		if e.PausedAtEpochMs != 0 {
			body.PausedAtEpochMs = &e.PausedAtEpochMs
		}
	}
	return json.Marshal(body)
}

// UnmarshalJSON decodes an event.
func (e *Event) UnmarshalJSON(data []byte) error {
	var body eventBody
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if body.V != Version {
		return fmt.Errorf("%w: %d", ErrVersion, body.V)
	}
	out := Event{Type: body.Type}
	if !out.known() {
		return fmt.Errorf("%w: event %q", ErrUnknownType, body.Type)
	}
	if body.AnchorEpochMs != nil {
		out.AnchorEpochMs = *body.AnchorEpochMs
	}
	if body.ElapsedSeconds != nil {
		out.ElapsedSeconds = *body.ElapsedSeconds
	}
	if body.IsRunning != nil {
		out.IsRunning = *body.IsRunning
	}
	if body.PausedAccumulatedMs != nil {
		out.PausedAccumulatedMs = *body.PausedAccumulatedMs
	}
	if body.PausedAtEpochMs != nil {
		out.PausedAtEpochMs = *body.PausedAtEpochMs
	}
	*e = out
	return nil
}
