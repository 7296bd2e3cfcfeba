// Package store provides version store implementations for the plughost
// lifecycle manager: an in-memory store for tests and embedded hosts, and
// a YAML file store for hosts that persist plugin records on disk.
package store

import (
	"context"
	"sync"
)

// Memory is an in-memory version store. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	records map[string]string
}

// NewMemory creates an empty in-memory version store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]string),
	}
}

// Get returns the installed version for identifier.
func (s *Memory) Get(_ context.Context, identifier string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, ok := s.records[identifier]
	return version, ok, nil
}

// Put records identifier as installed at version.
func (s *Memory) Put(_ context.Context, identifier, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[identifier] = version
	return nil
}

// Delete removes the record for identifier.
func (s *Memory) Delete(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, identifier)
	return nil
}

// All returns a copy of every record.
func (s *Memory) All(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make(map[string]string, len(s.records))
	for identifier, version := range s.records {
		records[identifier] = version
	}
	return records, nil
}
