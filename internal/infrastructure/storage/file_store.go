// Package storage persists the run state across executions. The default
// backend is a JSON file replaced atomically on save; a Postgres backend is
// available for deployments that already run a database.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

// FileStore keeps the run state in a single JSON file.
type FileStore struct {
	path   string
	logger *slog.Logger
}

var _ ports.StateStore = (*FileStore)(nil)

type stateFile struct {
	LastSuccessUTC *string  `json:"last_success_utc"`
	SeenIDs        []string `json:"seen_ids"`
}

// NewFileStore persists state at the given path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Load reads the persisted state. A missing or unreadable file yields a fresh
// state; corruption never fails the run.
func (s *FileStore) Load(ctx context.Context) (domain.RunState, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.warn("state file unreadable, starting fresh", "path", s.path, "error", err)
		}
		return domain.NewRunState(), nil
	}

	var file stateFile
	if err := json.Unmarshal(raw, &file); err != nil {
		s.warn("state file corrupt, starting fresh", "path", s.path, "error", err)
		return domain.NewRunState(), nil
	}

	state := domain.NewRunState()
	if file.LastSuccessUTC != nil {
		at, err := time.Parse(time.RFC3339, *file.LastSuccessUTC)
		if err != nil {
			s.warn("last_success_utc unparseable, treating as absent", "value", *file.LastSuccessUTC)
		} else {
			state.LastSuccess = at.UTC()
		}
	}
	state.MarkSeen(file.SeenIDs...)

	return state, nil
}

// Save writes the state to a temporary file in the target directory and swaps
// it into place, so a crash mid-write can never leave a partial file behind.
func (s *FileStore) Save(ctx context.Context, state domain.RunState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	file := stateFile{SeenIDs: make([]string, 0, len(state.SeenIDs))}
	if !state.LastSuccess.IsZero() {
		iso := state.LastSuccess.UTC().Format(time.RFC3339)
		file.LastSuccessUTC = &iso
	}
	for id := range state.SeenIDs {
		file.SeenIDs = append(file.SeenIDs, id)
	}
	sort.Strings(file.SeenIDs)

	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	raw = append(raw, '\n')

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

func (s *FileStore) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
