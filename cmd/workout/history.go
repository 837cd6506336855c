package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/bhandras/workout/internal/supervisor"
)

// historySubmitter appends finished sessions to a local JSON lines file.
type historySubmitter struct {
	mu   sync.Mutex
	path string
}

var _ supervisor.Submitter = (*historySubmitter)(nil)

func newHistorySubmitter(path string) *historySubmitter {
	return &historySubmitter{path: path}
}

// Submit implements supervisor.Submitter.
func (h *historySubmitter) Submit(ctx context.Context, summary supervisor.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	return f.Close()
}
