package emulator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// Snapshot is the persisted front-panel state. The instrument comes back
// up with its last settings in local mode.
type Snapshot struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Settings are keyed by subsystem prefix.
	Settings map[string]Setting `json:"settings,omitempty"`
}

// StateStore persists snapshots to a JSON file.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore creates a store for path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Save writes st to disk.
func (s *StateStore) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(Snapshot{
		Version:  StateVersion,
		SavedAt:  time.Now(),
		Settings: st.Settings,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Load reads the snapshot from disk.
// Returns nil, nil if the file doesn't exist.
func (s *StateStore) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if snap.Version != StateVersion {
		return nil, fmt.Errorf("state file %s: unsupported version %d", s.path, snap.Version)
	}
	return snap, nil
}

// Clear removes the state file.
func (s *StateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Restore replaces the settings with snap's and returns to local mode.
// Subsystems unknown to the command table are skipped.
func (e *Emulator) Restore(snap *Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.remote = false
	e.settings = make(map[string]*Setting, len(snap.Settings))
	for prefix, st := range snap.Settings {
		if _, ok := e.nodes[prefix]; !ok {
			continue
		}
		e.settings[prefix] = &st
	}
}
