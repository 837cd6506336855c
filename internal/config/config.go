package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// FileName is the optional YAML overlay inside the home directory.
const FileName = "config.yaml"

type Config struct {
	// HomeDir is where local state (checkpoints, keys, owner id) lives.
	HomeDir string

	// OwnerID pins the requester identity. Empty means derive it.
	OwnerID string
	// AccessToken is a JWT whose user claim identifies the owner.
	AccessToken string

	// Store selects the checkpoint backend (memory|file|sqlite).
	Store string
	// Codec selects the checkpoint encoding (json|cbor).
	Codec string
	// Encrypt seals checkpoints with a per-home key.
	Encrypt bool

	// LogLevel is the logger threshold.
	LogLevel string
	// Debug forces debug logging.
	Debug bool

	TickInterval       time.Duration
	CheckpointInterval time.Duration
	ResyncTimeout      time.Duration
	LivenessGrace      time.Duration
	// ResyncInterval is the periodic resync cadence; zero disables it.
	ResyncInterval time.Duration
	// TTL is how long a checkpoint stays recoverable.
	TTL time.Duration
}

// fileConfig is the YAML shape. Unset fields keep the current value.
type fileConfig struct {
	OwnerID            *string `yaml:"owner_id"`
	AccessToken        *string `yaml:"access_token"`
	Store              *string `yaml:"store"`
	Codec              *string `yaml:"codec"`
	Encrypt            *bool   `yaml:"encrypt"`
	LogLevel           *string `yaml:"log_level"`
	TickInterval       *string `yaml:"tick_interval"`
	CheckpointInterval *string `yaml:"checkpoint_interval"`
	ResyncTimeout      *string `yaml:"resync_timeout"`
	LivenessGrace      *string `yaml:"liveness_grace"`
	ResyncInterval     *string `yaml:"resync_interval"`
	TTL                *string `yaml:"ttl"`
}

// Default returns the built-in configuration rooted at homeDir.
func Default(homeDir string) *Config {
	return &Config{
		HomeDir:            homeDir,
		Store:              StoreFile,
		Codec:              "json",
		LogLevel:           "info",
		TickInterval:       time.Second,
		CheckpointInterval: 10 * time.Second,
		ResyncTimeout:      2 * time.Second,
		LivenessGrace:      3 * time.Second,
		ResyncInterval:     5 * time.Minute,
		TTL:                2 * time.Hour,
	}
}

// Load loads configuration from defaults, the home YAML file and the
// environment, in increasing precedence.
func Load() (*Config, error) {
	homeDir := os.Getenv("WORKOUT_HOME_DIR")
	if homeDir == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		homeDir = filepath.Join(userHome, ".workout")
	}

	if err := os.MkdirAll(homeDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create workout home: %w", err)
	}

	cfg := Default(homeDir)
	if err := cfg.applyFile(filepath.Join(homeDir, FileName)); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	setString(&c.OwnerID, fc.OwnerID)
	setString(&c.AccessToken, fc.AccessToken)
	setString(&c.Store, fc.Store)
	setString(&c.Codec, fc.Codec)
	setString(&c.LogLevel, fc.LogLevel)
	if fc.Encrypt != nil {
		c.Encrypt = *fc.Encrypt
	}

	durations := []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"tick_interval", fc.TickInterval, &c.TickInterval},
		{"checkpoint_interval", fc.CheckpointInterval, &c.CheckpointInterval},
		{"resync_timeout", fc.ResyncTimeout, &c.ResyncTimeout},
		{"liveness_grace", fc.LivenessGrace, &c.LivenessGrace},
		{"resync_interval", fc.ResyncInterval, &c.ResyncInterval},
		{"ttl", fc.TTL, &c.TTL},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(*d.src))
		if err != nil {
			return fmt.Errorf("invalid %s in %s: %w", d.name, path, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WORKOUT_OWNER_ID"); v != "" {
		c.OwnerID = v
	}
	if v := os.Getenv("WORKOUT_ACCESS_TOKEN"); v != "" {
		c.AccessToken = v
	}
	if v := os.Getenv("WORKOUT_STORE"); v != "" {
		c.Store = v
	}
	if v := os.Getenv("WORKOUT_CODEC"); v != "" {
		c.Codec = v
	}
	if v := os.Getenv("WORKOUT_ENCRYPT"); v != "" {
		c.Encrypt = isTrue(v)
	}
	if v := os.Getenv("WORKOUT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	c.Debug = isTrue(os.Getenv("DEBUG"))
}

// Validate checks enumerations and durations.
func (c *Config) Validate() error {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	switch c.Store {
	case StoreMemory, StoreFile, StoreSQLite:
	default:
		return fmt.Errorf("invalid store %q (expected memory, file, or sqlite)", c.Store)
	}

	c.Codec = strings.ToLower(strings.TrimSpace(c.Codec))
	if c.Codec != "json" && c.Codec != "cbor" {
		return fmt.Errorf("invalid codec %q (expected json or cbor)", c.Codec)
	}

	positive := []struct {
		name string
		v    time.Duration
	}{
		{"tick_interval", c.TickInterval},
		{"checkpoint_interval", c.CheckpointInterval},
		{"resync_timeout", c.ResyncTimeout},
		{"liveness_grace", c.LivenessGrace},
		{"ttl", c.TTL},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %s", p.name, p.v)
		}
	}
	if c.ResyncInterval < 0 {
		return fmt.Errorf("resync_interval must not be negative, got %s", c.ResyncInterval)
	}
	if c.LivenessGrace <= c.TickInterval {
		return fmt.Errorf("liveness_grace (%s) must exceed tick_interval (%s)", c.LivenessGrace, c.TickInterval)
	}
	return nil
}

// CheckpointDir is where the file backend keeps its slots.
func (c *Config) CheckpointDir() string { return filepath.Join(c.HomeDir, "checkpoints") }

// DatabasePath is the sqlite backend's database file.
func (c *Config) DatabasePath() string { return filepath.Join(c.HomeDir, "workout.db") }

// KeyPath is the sealing key used when Encrypt is set.
func (c *Config) KeyPath() string { return filepath.Join(c.HomeDir, "checkpoint.key") }

// HistoryPath is the JSON lines log of finished sessions.
func (c *Config) HistoryPath() string { return filepath.Join(c.HomeDir, "history.jsonl") }

// OwnerIDPath holds the generated local owner id.
func (c *Config) OwnerIDPath() string { return filepath.Join(c.HomeDir, "owner.id") }

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func isTrue(v string) bool {
	return v == "true" || v == "1"
}
