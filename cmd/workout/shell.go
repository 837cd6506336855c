package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/bhandras/workout/internal/supervisor"
	"github.com/bhandras/workout/internal/visibility"
)

const finishTimeout = 10 * time.Second

// shell is the interactive command loop.
type shell struct {
	sup   *supervisor.Supervisor
	coord *visibility.Coordinator
	rl    *readline.Instance
}

func newShell(sup *supervisor.Supervisor, coord *visibility.Coordinator) (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "workout> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &shell{sup: sup, coord: coord, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the prompt.
func (s *shell) Stdout() io.Writer { return s.rl.Stdout() }

// Stderr returns a writer that coordinates with the prompt.
func (s *shell) Stderr() io.Writer { return s.rl.Stderr() }

// Close interrupts a pending Readline.
func (s *shell) Close() { _ = s.rl.Close() }

// Run reads commands until quit, EOF or ctx is done.
func (s *shell) Run(ctx context.Context) {
	defer s.rl.Close()

	updates, unsubscribe := s.sup.Subscribe()
	defer unsubscribe()
	go s.watch(ctx, updates)

	s.printHelp()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(input, " ")
		if !s.dispatch(ctx, strings.ToLower(cmd), strings.TrimSpace(rest)) {
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			return
		}
	}
}

// dispatch runs one command and reports whether the shell should continue.
func (s *shell) dispatch(ctx context.Context, cmd, rest string) bool {
	out := s.rl.Stdout()
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "start":
		s.sup.Start()
	case "pause", "p":
		s.sup.Pause()
	case "resume", "r":
		s.sup.Resume()
	case "stop":
		s.sup.Stop()
	case "finish":
		s.cmdFinish(ctx)
	case "status", "s":
		s.cmdStatus()
	case "note":
		s.cmdNote(rest)
	case "hide":
		s.coord.Handle(visibility.Hidden)
	case "show":
		s.coord.Handle(visibility.Visible)
	case "sync":
		s.sup.Resync()
	case "quit", "exit", "q":
		return false
	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

// watch prints lifecycle changes; plain ticks stay quiet.
func (s *shell) watch(ctx context.Context, updates <-chan supervisor.Projection) {
	var last supervisor.Projection
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-updates:
			if p.Status != last.Status || p.Degraded != last.Degraded {
				fmt.Fprintf(s.rl.Stdout(), "[%s] %s\n", formatElapsed(p.ElapsedSeconds), describe(p))
			}
			last = p
		}
	}
}

func (s *shell) cmdFinish(ctx context.Context) {
	out := s.rl.Stdout()
	ctx, cancel := context.WithTimeout(ctx, finishTimeout)
	defer cancel()

	summary, err := s.sup.Finish(ctx)
	switch {
	case err == nil:
		fmt.Fprintf(out, "Finished: %s\n", formatElapsed(summary.ElapsedSeconds))
	case summary.OwnerID != "":
		fmt.Fprintf(out, "Finished: %s (not recorded: %v)\n", formatElapsed(summary.ElapsedSeconds), err)
	default:
		fmt.Fprintf(out, "Nothing to finish: %v\n", err)
	}
}

func (s *shell) cmdStatus() {
	p := s.sup.Snapshot()
	fmt.Fprintf(s.rl.Stdout(), "%s  %s\n", formatElapsed(p.ElapsedSeconds), describe(p))
	if since, hidden := s.coord.HiddenSince(); hidden {
		fmt.Fprintf(s.rl.Stdout(), "hidden since %s\n", since.Format(time.Kitchen))
	}
}

func (s *shell) cmdNote(rest string) {
	out := s.rl.Stdout()
	if rest == "" {
		fmt.Fprintln(out, "Usage: note <json>")
		return
	}
	if err := s.sup.SetPayload(json.RawMessage(rest)); err != nil {
		fmt.Fprintf(out, "Invalid note: %v\n", err)
	}
}

func (s *shell) printHelp() {
	fmt.Fprint(s.rl.Stdout(), `
Workout Commands:
  Session:
    start              - Start a new session
    pause              - Pause the running session
    resume             - Resume a paused session
    stop               - Discard the session
    finish             - End the session and record it
    note <json>        - Attach a JSON note to the session

  Timing:
    status             - Show elapsed time
    sync               - Ask the timer for the exact time
    hide / show        - Simulate going to the background and back

  Other:
    help               - Show this help
    quit               - Exit (the session stays resumable)
`+"\n")
}

func describe(p supervisor.Projection) string {
	state := string(p.Status)
	if p.Degraded {
		state += " (estimated)"
	}
	return state
}

func formatElapsed(seconds int64) string {
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}
