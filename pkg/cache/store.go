// Package cache persists facts from previous report runs so that a pass which
// reports no assets can fall back to the last known asset list.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when no state was recorded yet.
var ErrNotFound = errors.New("no recorded state")

// stateVersion is bumped when State changes incompatibly.
const stateVersion = 1

// StateFile is the file name used inside the state directory.
const StateFile = "state.msgpack"

// State is what one run leaves behind for the next.
type State struct {
	Version   int       `msgpack:"version"`
	Assets    []string  `msgpack:"assets"`
	UpdatedAt time.Time `msgpack:"updated_at"`
}

// Store loads and saves State.
type Store interface {
	// Load returns the recorded state or ErrNotFound.
	Load() (*State, error)

	// Save records state, replacing what was recorded before.
	Save(s *State) error
}

// FileStore keeps State in a msgpack file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store writing to StateFile inside dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, StateFile)}
}

// Path returns the state file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the state file.
func (s *FileStore) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}
	defer f.Close()

	var st State
	if err := msgpack.NewDecoder(f).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	if st.Version != stateVersion {
		return nil, fmt.Errorf("%w: state version %d is not supported", ErrNotFound, st.Version)
	}
	return &st, nil
}

// Save writes the state file atomically.
func (s *FileStore) Save(st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	out := *st
	out.Version = stateVersion
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = time.Now().UTC()
	}
	data, err := msgpack.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Clear removes the state file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// MemoryStore keeps State in memory, for embedding callers and tests.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, ErrNotFound
	}
	st := *m.state
	st.Assets = slices.Clone(st.Assets)
	return &st, nil
}

func (m *MemoryStore) Save(s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := *s
	st.Version = stateVersion
	st.Assets = slices.Clone(s.Assets)
	m.state = &st
	return nil
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
