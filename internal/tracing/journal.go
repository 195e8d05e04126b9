package tracing

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Geravant/sinain-hud/pkg/models"
)

// Journal appends finished traces to an append-only daily JSONL file.
// The stream rotates when the UTC date changes. Write failures are
// logged and dropped; they never fail a tick.
type Journal struct {
	mu      sync.Mutex
	dir     string
	date    string
	file    *os.File
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewJournal creates a journal writing under dir. The directory is
// created on first append.
func NewJournal(dir string, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		dir:     dir,
		logger:  logger.With("component", "trace-journal"),
		nowFunc: time.Now,
	}
}

// Append writes one trace as a single JSON line, rotating the stream on
// UTC date change.
func (j *Journal) Append(trace models.Trace) {
	j.mu.Lock()
	defer j.mu.Unlock()

	date := j.nowFunc().UTC().Format("2006-01-02")
	if j.file == nil || date != j.date {
		if err := j.rotateLocked(date); err != nil {
			j.logger.Warn("journal rotate failed", "error", err)
			return
		}
	}

	line, err := json.Marshal(trace)
	if err != nil {
		j.logger.Warn("journal marshal failed", "error", err)
		return
	}
	line = append(line, '\n')
	if _, err := j.file.Write(line); err != nil {
		j.logger.Warn("journal write failed", "error", err)
	}
}

func (j *Journal) rotateLocked(date string) error {
	if j.file != nil {
		j.file.Close()
		j.file = nil
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", j.dir, err)
	}
	path := filepath.Join(j.dir, date+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	j.file = f
	j.date = date
	return nil
}

// Close flushes and closes the current stream.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}
