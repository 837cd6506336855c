package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/bhandras/workout/internal/config"
	"github.com/bhandras/workout/internal/identity"
	"github.com/bhandras/workout/internal/store"
	"github.com/bhandras/workout/internal/supervisor"
	"github.com/bhandras/workout/internal/timing"
	"github.com/bhandras/workout/internal/visibility"
	"github.com/bhandras/workout/pkg/logger"
)

const version = "workout v0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	args, help, err := parseFlags(cfg, os.Args[1:])
	if err != nil {
		return err
	}
	if help {
		printUsage()
		return nil
	}
	if err := configureLogging(cfg); err != nil {
		return err
	}

	if len(args) > 0 {
		switch args[0] {
		case "help":
			printUsage()
			return nil
		case "version":
			fmt.Println(version)
			return nil
		case "clear":
			return clearCommand(cfg)
		default:
			return fmt.Errorf("unknown command %q (try 'workout help')", args[0])
		}
	}

	owner, source, err := identity.Resolve(cfg.OwnerID, cfg.AccessToken, cfg.OwnerIDPath())
	if err != nil {
		return fmt.Errorf("failed to resolve owner: %w", err)
	}
	logger.Debugf("owner %s (from %s), home %s", owner, source, cfg.HomeDir)

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warnf("failed to close store: %v", err)
		}
	}()

	authority := timing.New(timing.Config{TickInterval: cfg.TickInterval})
	authority.Start()
	defer authority.Stop()

	sup := supervisor.New(supervisor.Config{
		OwnerID:            owner,
		Authority:          authority,
		Repository:         st,
		Submitter:          newHistorySubmitter(cfg.HistoryPath()),
		CheckpointInterval: cfg.CheckpointInterval,
		ResyncTimeout:      cfg.ResyncTimeout,
		LivenessGrace:      cfg.LivenessGrace,
		ResyncInterval:     cfg.ResyncInterval,
	})
	restored := sup.Restore()
	sup.Open()
	defer sup.Close()

	coord := visibility.New(sup, nil)
	sh, err := newShell(sup, coord)
	if err != nil {
		return err
	}
	logger.SetOutput(sh.Stderr())
	defer logger.SetOutput(os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	visibility.Watch(ctx, visibility.HandlerFunc(func(sig visibility.Signal) {
		coord.Handle(sig)
		if sig == visibility.Unload {
			cancel()
			sh.Close()
		}
	}))

	if restored {
		fmt.Fprintln(sh.Stdout(), "Resumed your previous session.")
	}
	sh.Run(ctx)

	// Leaving the shell is an unload: keep the session resumable.
	coord.Handle(visibility.Unload)
	return nil
}

func parseFlags(cfg *config.Config, args []string) ([]string, bool, error) {
	fs := flag.NewFlagSet("workout", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	owner := fs.String("owner", "", "Owner id for persisted sessions")
	storeKind := fs.String("store", "", "Checkpoint backend (memory|file|sqlite)")
	codec := fs.String("codec", "", "Checkpoint encoding (json|cbor)")
	encrypt := fs.Bool("encrypt", false, "Encrypt checkpoints")
	logLevel := fs.String("log-level", "", "Log level (trace|debug|info|warn|error)")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}
	if *showHelp {
		return nil, true, nil
	}

	if *owner != "" {
		cfg.OwnerID = *owner
	}
	if *storeKind != "" {
		cfg.Store = *storeKind
	}
	if *codec != "" {
		cfg.Codec = *codec
	}
	if *encrypt {
		cfg.Encrypt = true
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return fs.Args(), false, nil
}

func configureLogging(cfg *config.Config) error {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if cfg.Debug && level > logger.LevelDebug {
		level = logger.LevelDebug
	}
	logger.SetLevel(level)
	return nil
}

// openStore builds the checkpoint store selected by cfg. The returned
// function releases the backend.
func openStore(cfg *config.Config) (*store.Store, func() error, error) {
	closer := func() error { return nil }

	var backend store.Backend
	switch cfg.Store {
	case config.StoreMemory:
		backend = store.NewMemoryBackend()
	case config.StoreFile:
		fb, err := store.NewFileBackend(cfg.CheckpointDir())
		if err != nil {
			return nil, nil, err
		}
		backend = fb
	case config.StoreSQLite:
		db, err := store.OpenSQLite(cfg.DatabasePath())
		if err != nil {
			return nil, nil, err
		}
		backend = db
		closer = db.Close
	default:
		return nil, nil, fmt.Errorf("invalid store %q", cfg.Store)
	}

	if cfg.Encrypt {
		key, err := store.LoadOrCreateKey(cfg.KeyPath())
		if err != nil {
			_ = closer()
			return nil, nil, err
		}
		sealed, err := store.NewSealed(backend, key)
		if err != nil {
			_ = closer()
			return nil, nil, err
		}
		backend = sealed
	}

	codec, err := store.CodecByName(cfg.Codec)
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return store.New(backend, store.WithCodec(codec), store.WithTTL(cfg.TTL)), closer, nil
}

func clearCommand(cfg *config.Config) error {
	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()
	st.Clear()
	fmt.Println("Cleared persisted session.")
	return nil
}

func printUsage() {
	fmt.Println(`workout - workout session timer with crash and suspend recovery

Usage:
  workout              Start the interactive shell (resumes a recent session)
  workout clear        Delete any persisted session
  workout help         Show this help message
  workout version      Show version information

Environment Variables:
  WORKOUT_HOME_DIR      State directory (default: ~/.workout)
  WORKOUT_OWNER_ID      Owner id for persisted sessions
  WORKOUT_ACCESS_TOKEN  Access token (JWT) used to derive the owner id
  WORKOUT_STORE         Checkpoint backend (memory|file|sqlite, default: file)
  WORKOUT_CODEC         Checkpoint encoding (json|cbor, default: json)
  WORKOUT_ENCRYPT       Encrypt checkpoints (true/1)
  WORKOUT_LOG_LEVEL     Log level (default: info)
  DEBUG                 Enable debug logging (true/1)

Flags:
  --owner      Owner id
  --store      Checkpoint backend
  --codec      Checkpoint encoding
  --encrypt    Encrypt checkpoints
  --log-level  Log level

Settings can also be placed in $WORKOUT_HOME_DIR/config.yaml.`)
}
