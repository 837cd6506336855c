package wire

import "fmt"

// CommandType discriminates commands sent to the timing authority.
type CommandType string

const (
	// CmdStart starts timing from an anchor timestamp.
	CmdStart CommandType = "START"
	// CmdPause freezes elapsed time.
	CmdPause CommandType = "PAUSE"
	// CmdResume continues after a pause.
	CmdResume CommandType = "RESUME"
	// CmdStop clears all timing state.
	CmdStop CommandType = "STOP"
	// CmdGetTime requests a TIME_UPDATE reply.
	CmdGetTime CommandType = "GET_TIME"
	// CmdRestore rehydrates a previously checkpointed timer.
	CmdRestore CommandType = "RESTORE"
)

// Command is a message to the timing authority.
type Command struct {
	Type CommandType

	// AnchorEpochMs is set for START and RESTORE.
	AnchorEpochMs int64
	// PausedAccumulatedMs is set for RESTORE.
	PausedAccumulatedMs int64
	// PausedAtEpochMs is set for RESTORE of a paused timer; zero means the
	// restored timer is running.
	PausedAtEpochMs int64
}

// Start returns a START command.
func Start(anchorEpochMs int64) Command {
	return Command{Type: CmdStart, AnchorEpochMs: anchorEpochMs}
}

// Pause returns a PAUSE command.
func Pause() Command { return Command{Type: CmdPause} }

// Resume returns a RESUME command.
func Resume() Command { return Command{Type: CmdResume} }

// Stop returns a STOP command.
func Stop() Command { return Command{Type: CmdStop} }

// GetTime returns a GET_TIME command.
func GetTime() Command { return Command{Type: CmdGetTime} }

// Restore returns a RESTORE command.
func Restore(anchorEpochMs, pausedAccumulatedMs, pausedAtEpochMs int64) Command {
	return Command{
		Type:                CmdRestore,
		AnchorEpochMs:       anchorEpochMs,
		PausedAccumulatedMs: pausedAccumulatedMs,
		PausedAtEpochMs:     pausedAtEpochMs,
	}
}

// Validate checks that the command carries the fields its type requires.
func (c Command) Validate() error {
	switch c.Type {
	case CmdStart:
		if c.AnchorEpochMs <= 0 {
			return fmt.Errorf("%w: START without anchorEpochMs", ErrInvalid)
		}
	case CmdRestore:
		if c.AnchorEpochMs <= 0 {
			return fmt.Errorf("%w: RESTORE without anchorEpochMs", ErrInvalid)
		}
		if c.PausedAccumulatedMs < 0 {
			return fmt.Errorf("%w: negative pausedAccumulatedMs", ErrInvalid)
		}
		if c.PausedAtEpochMs != 0 && c.PausedAtEpochMs < c.AnchorEpochMs {
			return fmt.Errorf("%w: pausedAtEpochMs before anchor", ErrInvalid)
		}
	case CmdPause, CmdResume, CmdStop, CmdGetTime:
	default:
		return fmt.Errorf("%w: command %q", ErrUnknownType, c.Type)
	}
	return nil
}

func (c Command) String() string {
	switch c.Type {
	case CmdStart:
		return fmt.Sprintf("%s(anchor=%d)", c.Type, c.AnchorEpochMs)
	case CmdRestore:
		return fmt.Sprintf("%s(anchor=%d paused=%dms at=%d)", c.Type,
			c.AnchorEpochMs, c.PausedAccumulatedMs, c.PausedAtEpochMs)
	default:
		return string(c.Type)
	}
}
