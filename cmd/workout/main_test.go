package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bhandras/workout/internal/config"
	"github.com/bhandras/workout/internal/store"
	"github.com/bhandras/workout/internal/supervisor"
	"github.com/stretchr/testify/require"
)

func TestFormatElapsed(t *testing.T) {
	t.Parallel()

	require.Equal(t, "0:00:00", formatElapsed(0))
	require.Equal(t, "0:56:40", formatElapsed(3400))
	require.Equal(t, "2:00:01", formatElapsed(7201))
}

func TestParseFlagsOverridesConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default(t.TempDir())
	args, help, err := parseFlags(cfg, []string{"--store", "sqlite", "--codec", "cbor", "--encrypt", "clear"})
	require.NoError(t, err)
	require.False(t, help)
	require.Equal(t, []string{"clear"}, args)
	require.Equal(t, config.StoreSQLite, cfg.Store)
	require.Equal(t, "cbor", cfg.Codec)
	require.True(t, cfg.Encrypt)

	_, _, err = parseFlags(config.Default(t.TempDir()), []string{"--store", "redis"})
	require.Error(t, err)

	_, help, err = parseFlags(config.Default(t.TempDir()), []string{"--help"})
	require.NoError(t, err)
	require.True(t, help)
}

func TestOpenStoreBackends(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{config.StoreMemory, config.StoreFile, config.StoreSQLite} {
		t.Run(kind, func(t *testing.T) {
			cfg := config.Default(t.TempDir())
			cfg.Store = kind
			cfg.Codec = "cbor"
			cfg.Encrypt = true

			st, closeStore, err := openStore(cfg)
			require.NoError(t, err)
			defer func() { require.NoError(t, closeStore()) }()

			nowMs := time.Now().UnixMilli()
			st.SaveTimer(store.TimerCheckpoint{
				OwnerID:           "alice",
				AnchorEpochMs:     nowMs - 1_000,
				IsRunning:         true,
				CheckpointEpochMs: nowMs,
			})
			snap, ok := st.Load("alice")
			require.True(t, ok)
			require.Equal(t, nowMs-1_000, snap.Timer.AnchorEpochMs)
		})
	}
}

func TestHistorySubmitterAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.jsonl")
	h := newHistorySubmitter(path)
	for i := int64(1); i <= 2; i++ {
		require.NoError(t, h.Submit(context.Background(), supervisor.Summary{
			OwnerID:        "alice",
			ElapsedSeconds: i * 60,
			Payload:        json.RawMessage(`{"sets":1}`),
		}))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var got supervisor.Summary
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	require.Equal(t, int64(120), got.ElapsedSeconds)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, h.Submit(ctx, supervisor.Summary{}), context.Canceled)
}
