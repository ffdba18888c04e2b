package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"yieldScope/internal/storage/postgres"
)

const (
	StatusOK      = "ok"
	StatusAborted = "aborted"
)

// RunState describes the last cycle the loop ran.
type RunState struct {
	LastRun    int64  `json:"last_run_ts"`
	Generation uint64 `json:"generation"`
	Status     string `json:"status"`
}

// StateStore persists the last RunState of one syncer.
type StateStore interface {
	Load(ctx context.Context) (RunState, bool, error)
	Save(ctx context.Context, state RunState) error
}

// FileStateStore keeps the run state of several syncers in one JSON file,
// keyed by Name.
type FileStateStore struct {
	Path string
	Name string

	mu sync.Mutex
}

type stateEntry struct {
	RunState
	UpdatedAt string `json:"updated_at"`
}

func (s *FileStateStore) Load(ctx context.Context) (RunState, bool, error) {
	if s == nil || s.Path == "" {
		return RunState{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return RunState{}, false, err
	}
	entry, ok := entries[s.Name]
	return entry.RunState, ok, nil
}

func (s *FileStateStore) Save(ctx context.Context, state RunState) error {
	if s == nil || s.Path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}
	entries[s.Name] = stateEntry{RunState: state, UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano)}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func (s *FileStateStore) read() (map[string]stateEntry, error) {
	entries := make(map[string]stateEntry)
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return entries, nil
}

// DBBackend is the subset of the postgres store used for state.
type DBBackend interface {
	LoadState(ctx context.Context, name string) (postgres.SyncState, bool, error)
	SaveState(ctx context.Context, name string, state postgres.SyncState) error
}

// DBStateStore stores state in the sync_state table.
type DBStateStore struct {
	Store DBBackend
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (RunState, bool, error) {
	if s == nil || s.Store == nil {
		return RunState{}, false, nil
	}
	row, ok, err := s.Store.LoadState(ctx, s.Name)
	if err != nil || !ok {
		return RunState{}, ok, err
	}
	return RunState{LastRun: row.LastRunTS, Generation: uint64(row.Generation), Status: row.Status}, true, nil
}

func (s *DBStateStore) Save(ctx context.Context, state RunState) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.Name, postgres.SyncState{
		LastRunTS:  state.LastRun,
		Generation: int64(state.Generation),
		Status:     state.Status,
	})
}
