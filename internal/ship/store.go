package ship

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
)

// saveFileName is the single save slot inside the save dir.
const saveFileName = "ship_upgrade_state.json"

// Store keeps the upgrade state as a JSON file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a store rooted at dir. The directory is created on
// first save.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, saveFileName)}
}

// Path returns the save file location.
func (s *Store) Path() string { return s.path }

// Load reads the saved state. A missing file yields a zero-level state for
// defaultShipID.
func (s *Store) Load(defaultShipID string) (UpgradeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return UpgradeState{ShipID: defaultShipID}, nil
	}
	if err != nil {
		return UpgradeState{}, fmt.Errorf("read save: %w", err)
	}

	var state UpgradeState
	if err := json.Unmarshal(data, &state); err != nil {
		return UpgradeState{}, fmt.Errorf("decode save %s: %w", s.path, err)
	}
	return state, nil
}

// Save writes state atomically (temp file + rename).
func (s *Store) Save(state UpgradeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode save: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create save dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}
