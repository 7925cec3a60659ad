package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"sjsage522/listingworker/logger"
)

// FileLog appends summaries to a JSON array file
type FileLog struct {
	path string
	mu   sync.Mutex
	log  *logger.Logger
}

// Ensure FileLog implements Sink
var _ Sink = (*FileLog)(nil)

// NewFileLog creates a log at path. The file and its directory are created on
// first write.
func NewFileLog(path string) *FileLog {
	return &FileLog{path: path, log: logger.ForComponent("stats-log")}
}

// Path returns the log file path
func (f *FileLog) Path() string {
	return f.path
}

// Record appends s to the log. A missing, empty or unreadable log starts a
// new array.
func (f *FileLog) Record(ctx context.Context, s Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		f.log.Warn().Err(err).Str("path", f.path).Msg("Stats log unreadable, starting a new one")
		entries = nil
	}
	entries = append(entries, s)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode stats log: %w", err)
	}
	return f.write(data)
}

// Entries returns every summary in the log
func (f *FileLog) Entries() ([]Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

func (f *FileLog) read() ([]Summary, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stats log: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Summary
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode stats log: %w", err)
	}
	return entries, nil
}

// write replaces the log through a temporary file so readers never see a
// partial array
func (f *FileLog) write(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create stats log directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary stats log: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write stats log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write stats log: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace stats log: %w", err)
	}
	return nil
}
