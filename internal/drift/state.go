package drift

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const stateFileName = "sync.state.toml"

// State records the last successful synchronization pass.
type State struct {
	RunID           string    `toml:"run_id"`
	CompletedAt     time.Time `toml:"completed_at"`
	EntitiesUpdated int       `toml:"entities_updated"`
	Conflicts       int       `toml:"conflicts"`
}

// LoadState reads the sync state file from dir. A missing file is an empty
// state, never an error.
func LoadState(dir string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(dir, stateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("drift: reading state file: %w", err)
	}

	var st State
	if err := toml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("drift: parsing state file: %w", err)
	}
	return &st, nil
}

// SaveState writes the state file atomically (write temp + rename),
// creating dir if needed.
func SaveState(dir string, st *State) error {
	data, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("drift: encoding state: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("drift: creating state dir: %w", err)
	}

	path := filepath.Join(dir, stateFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("drift: writing state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("drift: replacing state file: %w", err)
	}
	return nil
}
