package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// File is a version store backed by a single YAML document on disk, a
// mapping from plugin identifier to installed version. Writes go through
// a temporary file and an atomic rename so a crash mid-write never leaves
// a truncated store.
type File struct {
	path string

	mu      sync.Mutex
	records map[string]string
	loaded  bool
}

// NewFile creates a file store at path. The file is created on first
// write; a missing file reads as an empty store.
func NewFile(path string) *File {
	return &File{
		path: path,
	}
}

// Path returns the backing file path.
func (s *File) Path() string {
	return s.path
}

// Get returns the installed version for identifier.
func (s *File) Get(_ context.Context, identifier string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return "", false, err
	}
	version, ok := s.records[identifier]
	return version, ok, nil
}

// Put records identifier as installed at version and persists the store.
func (s *File) Put(_ context.Context, identifier, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}
	s.records[identifier] = version
	return s.flush()
}

// Delete removes the record for identifier and persists the store.
// Deleting an absent record is not an error.
func (s *File) Delete(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}
	if _, ok := s.records[identifier]; !ok {
		return nil
	}
	delete(s.records, identifier)
	return s.flush()
}

// All returns a copy of every record.
func (s *File) All(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}
	records := make(map[string]string, len(s.records))
	for identifier, version := range s.records {
		records[identifier] = version
	}
	return records, nil
}

// load reads the backing file once; later calls reuse the cached records.
// Caller must hold s.mu.
func (s *File) load() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path) //nolint:gosec // store path comes from the host configuration
	if err != nil {
		if os.IsNotExist(err) {
			s.records = make(map[string]string)
			s.loaded = true
			return nil
		}
		return fmt.Errorf("failed to read version store %s: %w", s.path, err)
	}

	records := make(map[string]string)
	if err := yaml.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse version store %s: %w", s.path, err)
	}

	s.records = records
	s.loaded = true
	return nil
}

// flush writes the records atomically. Caller must hold s.mu.
func (s *File) flush() error {
	data, err := yaml.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("failed to encode version store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write version store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace version store %s: %w", s.path, err)
	}
	return nil
}
