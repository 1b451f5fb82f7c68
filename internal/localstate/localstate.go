// Package localstate is the per-host durable key-value store: a small YAML
// file holding single string values that belong to this machine rather than
// to the shared workspace - the weekly transition marker and the
// last-selected workspace.
package localstate

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store is a file-backed string-to-string map. Writes are atomic (temp file
// plus rename) so a crash mid-write never corrupts existing state.
type Store struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

// DefaultPath returns the conventional location for the state file,
// under the user's configuration directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(dir, "waggle", "state.yml"), nil
}

// Open loads the state file at path, creating an empty store if the file
// doesn't exist yet.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		values: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}

	return s, nil
}

// Get returns the stored value for key, or "" if absent.
func (s *Store) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Set stores a value and persists the file.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.flushLocked()
}

// flushLocked writes the state file atomically. Caller must hold s.mu.
func (s *Store) flushLocked() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}

// LastWorkspace returns the workspace the user last joined, or "".
func (s *Store) LastWorkspace() string {
	return s.Get("last_workspace")
}

// SetLastWorkspace remembers the workspace the user last joined.
func (s *Store) SetLastWorkspace(workspace string) error {
	return s.Set("last_workspace", workspace)
}

// WorkspaceState is a view of the store scoped to one workspace, used as
// the rollover engine's marker store.
type WorkspaceState struct {
	store     *Store
	workspace string
}

// Workspace returns a view scoped to the given workspace name.
func (s *Store) Workspace(name string) *WorkspaceState {
	return &WorkspaceState{store: s, workspace: name}
}

// TransitionMarker returns the Monday (ISO date) for which the weekly
// transition already ran on this host, or "".
func (w *WorkspaceState) TransitionMarker() (string, error) {
	return w.store.Get("transition_marker:" + w.workspace), nil
}

// SetTransitionMarker records that the weekly transition ran for the week
// starting at the given Monday.
func (w *WorkspaceState) SetTransitionMarker(monday string) error {
	return w.store.Set("transition_marker:"+w.workspace, monday)
}
