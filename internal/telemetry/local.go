package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/rs/zerolog"

	"github.com/leshachaplin/testgenie/internal/domain"
)

const LocalTransportName = "local"

// LocalTransport appends events to a bounded JSON array on disk. It never
// fails: write errors are logged and the attempt still counts as delivered.
type LocalTransport struct {
	mu       sync.Mutex
	path     string
	capacity int
	logger   zerolog.Logger
}

func NewLocalTransport(path string, capacity int, logger zerolog.Logger) *LocalTransport {
	if capacity <= 0 {
		capacity = DefaultLocalCapacity
	}
	return &LocalTransport{path: path, capacity: capacity, logger: logger}
}

func (t *LocalTransport) Name() string { return LocalTransportName }

func (t *LocalTransport) Path() string { return t.path }

func (t *LocalTransport) Send(_ context.Context, e domain.Event) Result {
	if err := t.append(e.Flat()); err != nil {
		t.logger.Debug().Err(err).Str("path", t.path).Msg("local analytics write failed")
	}
	return ok(t.path)
}

func (t *LocalTransport) append(entry map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, err := t.read()
	if err != nil {
		// A corrupt file is replaced rather than blocking new entries.
		t.logger.Debug().Err(err).Str("path", t.path).Msg("discarding unreadable analytics file")
		entries = nil
	}

	entries = append(entries, entry)
	if len(entries) > t.capacity {
		entries = entries[len(entries)-t.capacity:]
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	if err := atomic.WriteFile(t.path, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("write %s: %w", t.path, err)
	}
	return nil
}

// Entries returns the stored entries, oldest first.
func (t *LocalTransport) Entries() ([]map[string]any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.read()
}

func (t *LocalTransport) read() ([]map[string]any, error) {
	raw, err := os.ReadFile(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []map[string]any
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t.path, err)
	}
	return entries, nil
}
