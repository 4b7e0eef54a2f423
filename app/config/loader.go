package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store loads, validates and saves the preferences file
type Store struct {
	path  string
	mu    sync.RWMutex
	prefs Preferences
}

// NewStore creates a store backed by path and loads it. A missing file
// yields defaults.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, prefs: Defaults()}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load re-reads the preferences file
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("Preferences file not found, using defaults", "path", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read preferences: %w", err)
	}

	prefs := Defaults()
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return fmt.Errorf("failed to parse preferences YAML: %w", err)
	}
	if err := validate(prefs); err != nil {
		return fmt.Errorf("invalid preferences %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.prefs = prefs
	s.mu.Unlock()

	slog.Debug("Loaded preferences", "path", s.path)
	return nil
}

// Get returns a copy of the current preferences
func (s *Store) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// Update validates and persists new preferences
func (s *Store) Update(prefs Preferences) error {
	if err := validate(prefs); err != nil {
		return err
	}

	data, err := yaml.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create preferences directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace preferences: %w", err)
	}

	s.prefs = prefs
	return nil
}

func validate(p Preferences) error {
	if p.Refresh.IntervalMinutes < 0 {
		return fmt.Errorf("refresh interval must be non-negative")
	}
	// Shorter intervals would be skipped by the 15 minute candidate filter anyway.
	if p.Refresh.IntervalMinutes > 0 && p.Refresh.IntervalMinutes < 15 {
		return fmt.Errorf("refresh interval must be 0 or at least 15 minutes")
	}
	return nil
}
