package store

import (
	"context"
	"sync"

	"github.com/tilsley/repolens/apps/server/internal/repos"
)

// Compile-time check: *MemoryBuildStore implements repos.BuildStore.
var _ repos.BuildStore = (*MemoryBuildStore)(nil)

// MemoryBuildStore is a process-local BuildStore used when no Redis address
// is configured. Records never expire.
type MemoryBuildStore struct {
	mu     sync.RWMutex
	builds map[string]repos.Build
}

// NewMemoryBuildStore creates an empty MemoryBuildStore.
func NewMemoryBuildStore() *MemoryBuildStore {
	return &MemoryBuildStore{builds: make(map[string]repos.Build)}
}

// Save stores b by ID.
func (s *MemoryBuildStore) Save(_ context.Context, b repos.Build) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds[b.ID] = b
	return nil
}

// Get returns a copy of the record, or nil when none exists.
func (s *MemoryBuildStore) Get(_ context.Context, id string) (*repos.Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.builds[id]
	if !ok {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	return &b, nil
}
