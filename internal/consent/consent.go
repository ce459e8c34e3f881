// Package consent records whether the user agreed to send usage analytics.
// The answer lives in ~/.testgenie/config.json next to any other keys the
// file may hold.
package consent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/rs/zerolog"
)

const key = "analyticsConsent"

// DefaultPath returns ~/.testgenie/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".testgenie", "config.json"), nil
}

// Store reads and writes the consent flag.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load returns the recorded answer, or nil when the user was never asked.
func (s *Store) Load() (*bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	raw, ok := doc[key]
	if !ok {
		return nil, nil
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	return &v, nil
}

func (s *Store) Save(granted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		// Unreadable config is rewritten; the flag is the only thing we own.
		doc = map[string]json.RawMessage{}
	}
	v, _ := json.Marshal(granted)
	doc[key] = v

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(append(out, '\n'))); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (s *Store) read() (map[string]json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return doc, nil
}

// AskFunc asks the user a yes/no question; ok is false when no answer could be read.
type AskFunc func(question string, def bool) (answer bool, ok bool)

// Resolver answers Granted once per process. An unset flag triggers a prompt
// when the session is interactive; otherwise it counts as declined and is
// not persisted.
type Resolver struct {
	store       *Store
	interactive bool
	ask         AskFunc
	logger      zerolog.Logger

	once    sync.Once
	mu      sync.Mutex
	granted bool
}

func NewResolver(store *Store, interactive bool, ask AskFunc, logger zerolog.Logger) *Resolver {
	return &Resolver{store: store, interactive: interactive, ask: ask, logger: logger}
}

const Question = "Allow usage analytics for internal reporting?"

func (r *Resolver) Granted() bool {
	r.once.Do(func() {
		v := r.resolve()
		r.mu.Lock()
		r.granted = v
		r.mu.Unlock()
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.granted
}

// Set replaces the answer for the rest of the process, after the flag was
// changed in the store.
func (r *Resolver) Set(granted bool) {
	r.once.Do(func() {})

	r.mu.Lock()
	r.granted = granted
	r.mu.Unlock()
}

func (r *Resolver) resolve() bool {
	v, err := r.store.Load()
	if err != nil {
		r.logger.Debug().Err(err).Str("path", r.store.Path()).Msg("consent unreadable")
		return false
	}
	if v != nil {
		return *v
	}
	if !r.interactive || r.ask == nil {
		return false
	}

	answer, ok := r.ask(Question, true)
	if !ok {
		return false
	}
	if err := r.store.Save(answer); err != nil {
		r.logger.Debug().Err(err).Msg("consent not saved")
	}
	return answer
}
