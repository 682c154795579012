package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// StateFile is where the build state lives, relative to the project root.
const StateFile = ".pack/build-state.json"

// State records what the last build wrote, for incremental emission.
type State struct {
	// Files maps output paths, relative to the output root, to content hashes
	Files map[string]string `json:"files"`
	// Options tracks the settings that affect output bytes
	Options Options `json:"options"`
	// LastBuildTime records when the build completed
	LastBuildTime time.Time `json:"last_build_time"`
	// Version is the pack version that wrote the state
	Version string `json:"version"`
}

// Options captures the settings that affect emitted bytes. A change in any
// of them forces every file to be rewritten.
type Options struct {
	Layer        string `json:"layer"`
	Minify       bool   `json:"minify"`
	RuntimeType  string `json:"runtime_type"`
	ChunkLoading string `json:"chunk_loading"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{Files: make(map[string]string)}
}

// LoadState reads the state from projectRoot. A missing file yields an
// empty state.
func LoadState(afs afero.Fs, projectRoot string) (*State, error) {
	statePath := filepath.Join(projectRoot, StateFile)

	data, err := afero.ReadFile(afs, statePath)
	if errors.Is(err, fs.ErrNotExist) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open build state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode build state: %w", err)
	}
	if state.Files == nil {
		state.Files = make(map[string]string)
	}
	return &state, nil
}

// Save writes the state under projectRoot atomically.
func (s *State) Save(afs afero.Fs, projectRoot string) error {
	statePath := filepath.Join(projectRoot, StateFile)
	if err := afs.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode build state: %w", err)
	}

	tmpPath := statePath + ".tmp"
	if err := afero.WriteFile(afs, tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	if err := afs.Rename(tmpPath, statePath); err != nil {
		_ = afs.Remove(tmpPath)
		return fmt.Errorf("failed to save build state: %w", err)
	}
	return nil
}
