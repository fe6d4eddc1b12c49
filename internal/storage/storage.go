package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mcpinspect/pkg/logging"
)

// DefaultDirName is the directory under the user home where all state files live.
const DefaultDirName = ".mcp-inspector"

// Store provides JSON file persistence for the inspector's state files
// (profiles, indexed resources, configuration). Writes go through a temp
// file plus rename so a crash mid-write never leaves a truncated file.
type Store struct {
	mu  sync.Mutex
	dir string // when empty, resolved to ~/.mcp-inspector on first use
}

// NewStore creates a Store rooted at the default ~/.mcp-inspector directory.
func NewStore() *Store {
	return &Store{}
}

// NewStoreWithDir creates a Store rooted at a custom directory. Used by tests
// and by deployments that relocate state via configuration.
func NewStoreWithDir(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory this store reads and writes.
func (s *Store) Dir() (string, error) {
	if s.dir != "" {
		return s.dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// Path returns the absolute path of a named state file.
func (s *Store) Path(name string) (string, error) {
	dir, err := s.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// SaveJSON atomically writes v as indented JSON to the named file.
func (s *Store) SaveJSON(name string, v interface{}) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	target := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}

	logging.Debug("Storage", "Saved %s (%d bytes)", target, len(data))
	return nil
}

// LoadJSON reads the named file into v. A missing file is reported via
// os.IsNotExist on the returned error so callers can treat it as fresh state.
func (s *Store) LoadJSON(name string, v interface{}) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.Path(name)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	logging.Debug("Storage", "Loaded %s (%d bytes)", path, len(data))
	return nil
}
